package webdriver

import (
	"gradeport-backend/lib/restyutil"
)

var restyInstrumentOutput restyutil.InstrumentOutput

// SetRestyInstrumentOutput mirrors the raw webdriver wire traffic of
// clients created afterwards into the given sink.
func SetRestyInstrumentOutput(output restyutil.InstrumentOutput) {
	restyInstrumentOutput = output
}
