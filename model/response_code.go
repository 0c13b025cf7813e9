package model

// ResponseCode is the status the market service attaches to a synchronous
// ack or an asynchronous response-code push.
type ResponseCode int

const (
	ResultOK                 ResponseCode = 0
	ResultUserCanceled       ResponseCode = 1
	ResultServiceUnavailable ResponseCode = 2
	ResultBillingUnavailable ResponseCode = 3
	ResultItemUnavailable    ResponseCode = 4
	ResultDeveloperError     ResponseCode = 5
	ResultError              ResponseCode = 6
)

// ResponseCodeOf decodes a wire value. Unrecognized values decode to
// ResultError so callers always get a displayable code; request handlers
// always receive the decoded code, never the raw value.
func ResponseCodeOf(value int) ResponseCode {
	switch code := ResponseCode(value); code {
	case ResultOK, ResultUserCanceled, ResultServiceUnavailable,
		ResultBillingUnavailable, ResultItemUnavailable, ResultDeveloperError:
		return code
	default:
		return ResultError
	}
}

// IsOK reports whether a raw wire value is the OK sentinel.
func IsOK(value int) bool {
	return ResponseCode(value) == ResultOK
}

func (c ResponseCode) String() string {
	switch c {
	case ResultOK:
		return "RESULT_OK"
	case ResultUserCanceled:
		return "RESULT_USER_CANCELED"
	case ResultServiceUnavailable:
		return "RESULT_SERVICE_UNAVAILABLE"
	case ResultBillingUnavailable:
		return "RESULT_BILLING_UNAVAILABLE"
	case ResultItemUnavailable:
		return "RESULT_ITEM_UNAVAILABLE"
	case ResultDeveloperError:
		return "RESULT_DEVELOPER_ERROR"
	default:
		return "RESULT_ERROR"
	}
}
