package http

type CheckoutRequest struct {
	BuyerID  string         `json:"buyer_id" validate:"required,max=100"`
	Currency string         `json:"currency" validate:"required,len=3"`
	Items    []CheckoutItem `json:"items" validate:"required,min=1,dive"`
}

type CheckoutItem struct {
	ProductID string `json:"product_id,omitempty"`
	Name      string `json:"name" validate:"required,max=255"`
	Price     uint   `json:"price" validate:"required,min=1"`
}

type CheckoutResponse struct {
	Code           string `json:"code"`
	GatewayOrderID string `json:"gateway_order_id"`
	Amount         uint   `json:"amount"`
	Currency       string `json:"currency"`
	Status         string `json:"status"`
	SnapToken      string `json:"snap_token,omitempty"`
	RedirectURL    string `json:"redirect_url,omitempty"`
}
