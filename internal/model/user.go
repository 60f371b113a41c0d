package model

// UserProfile is the identity returned by login/registration
type UserProfile struct {
	ID        string `json:"id"`
	FullName  string `json:"fullName"`
	Phone     string `json:"phone"`
	Email     string `json:"email,omitempty"`
	Gender    string `json:"gender,omitempty"`
	CreatedAt string `json:"createdAt,omitempty"`
	UpdatedAt string `json:"updatedAt,omitempty"`
}

// Payment is the provider redirect created for a subscription purchase
type Payment struct {
	PaymentID         string  `json:"paymentId"`
	ProviderPaymentID string  `json:"yookassaPaymentId,omitempty"`
	ConfirmationURL   string  `json:"confirmationUrl"`
	Status            string  `json:"status"`
	Amount            float64 `json:"amount"`
}
