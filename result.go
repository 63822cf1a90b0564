package od

import "strconv"

// Result reports the outcome of a dictionary operation. The zero value is
// ResultOK. Every operation in this package returns its Result to the
// immediate caller; nothing panics on data problems. Result satisfies error
// so failures can travel through error returns when that is more convenient.
type Result int8

const (
	// ResultPartial is not a failure: a chunked transfer has more bytes
	// pending and the caller is expected to call Read or Write again.
	ResultPartial Result = iota - 1
	ResultOK
	ResultOutOfMemory
	ResultUnsupportedAccess
	ResultWriteOnly  // read attempted on a write-only object
	ResultReadOnly   // write attempted on a read-only object
	ResultIndexNotFound
	ResultNotMappable
	ResultMapLength
	ResultParamIncompatible
	ResultDeviceIncompatible
	ResultHardware
	ResultTypeMismatch
	ResultDataTooLong
	ResultDataTooShort
	ResultSubIndexNotFound
	ResultInvalidValue
	ResultValueTooHigh
	ResultValueTooLow
	ResultMaxLessThanMin
	ResultNoResource
	ResultGeneral
	ResultDataTransfer
	ResultLocalControl
	ResultDeviceState
	ResultNoDictionary
	ResultNoData

	resultCount
)

var resultNames = [...]string{
	"partial",
	"OK",
	"out of memory",
	"unsupported access",
	"write-only",
	"read-only",
	"index not found",
	"not mappable",
	"mapping length",
	"parameter incompatible",
	"device incompatible",
	"hardware",
	"type mismatch",
	"data too long",
	"data too short",
	"sub-index not found",
	"invalid value",
	"value too high",
	"value too low",
	"max less than min",
	"no resource",
	"general",
	"data transfer",
	"local control",
	"device state",
	"no dictionary",
	"no data",
}

func (r Result) String() string {
	if i := int(r) + 1; i >= 0 && i < len(resultNames) {
		return resultNames[i]
	}
	return "result(" + strconv.Itoa(int(r)) + ")"
}

func (r Result) Error() string {
	return "od: " + r.String()
}

var abortCodes = [resultCount]uint32{
	ResultOK:                 0x00000000,
	ResultOutOfMemory:        0x05040005,
	ResultUnsupportedAccess:  0x06010000,
	ResultWriteOnly:          0x06010001,
	ResultReadOnly:           0x06010002,
	ResultIndexNotFound:      0x06020000,
	ResultNotMappable:        0x06040041,
	ResultMapLength:          0x06040042,
	ResultParamIncompatible:  0x06040043,
	ResultDeviceIncompatible: 0x06040047,
	ResultHardware:           0x06060000,
	ResultTypeMismatch:       0x06070010,
	ResultDataTooLong:        0x06070012,
	ResultDataTooShort:       0x06070013,
	ResultSubIndexNotFound:   0x06090011,
	ResultInvalidValue:       0x06090030,
	ResultValueTooHigh:       0x06090031,
	ResultValueTooLow:        0x06090032,
	ResultMaxLessThanMin:     0x06090036,
	ResultNoResource:         0x060A0023,
	ResultGeneral:            0x08000000,
	ResultDataTransfer:       0x08000020,
	ResultLocalControl:       0x08000021,
	ResultDeviceState:        0x08000022,
	ResultNoDictionary:       0x08000023,
	ResultNoData:             0x08000024,
}

// AbortCode converts the result into the matching CiA 301 transfer abort
// code. The mapping is total: anything outside the defined range, including
// ResultPartial, yields the general error code 0x08000000.
func (r Result) AbortCode() uint32 {
	if r < 0 || r >= resultCount {
		return abortCodes[ResultGeneral]
	}
	return abortCodes[r]
}
