package models

type ChooseModeRequest struct {
	ModeID string `json:"mode_id" binding:"required"`
}

type ChooseEffectRequest struct {
	EffectID string `json:"effect_id" binding:"required"`
}

type GenerateRequest struct {
	StyleID string `json:"style_id"`
}

type StartPaymentRequest struct {
	OrderType string `json:"order_type" binding:"required,oneof=download print"`
}
