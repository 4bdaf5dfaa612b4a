package exporter

import (
	"context"
	"fmt"
	"net/http/cookiejar"
	"net/url"
	"time"

	"gradeport-backend/lib/telemetry"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel/codes"
)

// Preflight fetches the portal landing page over plain HTTP before any
// browser slot is spent on it. An unreachable or erroring portal fails
// the whole run here, cheaply.
func (s Service) Preflight(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "Preflight")
	defer span.End()

	baseUrl, err := url.Parse(s.opts.BaseUrl)
	if err != nil {
		return err
	}

	client := resty.New()
	jar, err := cookiejar.New(nil)
	if err != nil {
		return err
	}
	client.SetCookieJar(jar)
	client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)

	client.SetHeader("user-agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36")
	client.SetRedirectPolicy(resty.DomainCheckRedirectPolicy(baseUrl.Hostname()))
	client.SetTimeout(time.Second * 30)

	telemetry.InstrumentResty(client, "gradeport.exporter.preflight")

	res, err := client.R().SetContext(ctx).Get(s.opts.BaseUrl)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "portal unreachable")
		return fmt.Errorf("portal unreachable: %w", err)
	}
	if res.StatusCode() >= 400 {
		err := fmt.Errorf("portal returned status %d", res.StatusCode())
		span.RecordError(err)
		span.SetStatus(codes.Error, "portal returned an error status")
		return err
	}
	return nil
}
