package models

// DeviceRegisterRequest is the request body for POST /v1/me/devices.
type DeviceRegisterRequest struct {
	Token    string `json:"token"`
	Platform string `json:"platform"`
}

// Device is a registered push target as returned to its owner.
type Device struct {
	Platform   string `json:"platform"`
	TokenLast4 string `json:"tokenLast4"`
	Created    bool   `json:"created"`
}
