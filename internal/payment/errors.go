package payment

import "fmt"

// ErrorCode is a backend error code carried as the message of a failed request.
type ErrorCode string

const (
	ErrorCodeInvalidPayee                   ErrorCode = "E400101"
	ErrorCodePayeeNotConfiguredForStripe    ErrorCode = "E400202"
	ErrorCodePayeeNotConfiguredForPayPal    ErrorCode = "E400203"
	ErrorCodePayeeRetrieveError             ErrorCode = "E404141"
	ErrorCodeInvalidPayer                   ErrorCode = "E400201"
	ErrorCodePayerRetrieveError             ErrorCode = "E404201"
	ErrorCodePayerSaveMethodError           ErrorCode = "E500262"
	ErrorCodeInvalidMinimumAmount           ErrorCode = "E400301"
	ErrorCodeInvalidEmail                   ErrorCode = "E400302"
	ErrorCodePaymentUseStoredMethodError    ErrorCode = "E400361"
	ErrorCodePaymentRetrieveError           ErrorCode = "E404341"
	ErrorCodePaymentCreationError           ErrorCode = "E500351"
	ErrorCodePaymentCreateStripeMethodError ErrorCode = "E500371"
	ErrorCodePaymentCreatePayPalMethodError ErrorCode = "E500381"
	ErrorCodePaymentCapturePayPalError      ErrorCode = "E500382"
)

var errorDescriptions = map[ErrorCode]string{
	ErrorCodeInvalidPayee:                   "Payment contains an invalid payee.",
	ErrorCodePayeeNotConfiguredForStripe:    "Payment methods (Cards) not supported.",
	ErrorCodePayeeNotConfiguredForPayPal:    "Payment method (PayPal) not supported.",
	ErrorCodePayeeRetrieveError:             "Payee does not exist.",
	ErrorCodeInvalidPayer:                   "Invalid payer.",
	ErrorCodePayerRetrieveError:             "Payer does not exist.",
	ErrorCodePayerSaveMethodError:           "Failed to store payment method.",
	ErrorCodeInvalidMinimumAmount:           "Payment amount falls below minimum amount.",
	ErrorCodeInvalidEmail:                   "Invalid email address. Please check your user data.",
	ErrorCodePaymentUseStoredMethodError:    "Failed to use stored payment method.",
	ErrorCodePaymentRetrieveError:           "Payment does not exist.",
	ErrorCodePaymentCreationError:           "Failed to create payment.",
	ErrorCodePaymentCreateStripeMethodError: "Failed to initiate payment (Cards). Please contact support.",
	ErrorCodePaymentCreatePayPalMethodError: "Failed to initiate payment (PayPal). Please contact support.",
	ErrorCodePaymentCapturePayPalError:      "Failed to captured PayPal amount. Please contact support.",
}

// RedirectMethodErrorText is shown inline when the redirect provider could not be started.
const RedirectMethodErrorText = "Failed to initiate payment (Wallee). Please contact support."

// Notice is the user-visible rendering of an error message.
type Notice struct {
	Message string    `json:"message"`
	Code    ErrorCode `json:"code,omitempty"`
	Known   bool      `json:"known"`
	Text    string    `json:"text"`
}

// DescribeError maps an error message to the taxonomy. Messages that are not
// a known code fall back to a generic banner carrying the message.
func DescribeError(message string) Notice {
	code := ErrorCode(message)
	if text, ok := errorDescriptions[code]; ok {
		return Notice{Message: message, Code: code, Known: true, Text: text}
	}
	return Notice{Message: message, Text: fmt.Sprintf("An error occurred. Code: %s", message)}
}

// Description returns the text for a known code.
func (c ErrorCode) Description() (string, bool) {
	text, ok := errorDescriptions[c]
	return text, ok
}
