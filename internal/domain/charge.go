package domain

// Charge é o descritor de pagamento entregue ao cliente: o "copia e cola"
// do PIX e a URL da imagem do QR Code.
type Charge struct {
	PixCode string `json:"pix_code"`
	QRURL   string `json:"qr_code"`
}
