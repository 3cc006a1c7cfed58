package models

// MessageButton is an inline action attached to an outbound message.
type MessageButton struct {
	Text string `json:"text"`
	URL  string `json:"url"`
}

// OutboundMessage is one addressed text message for the push channel.
type OutboundMessage struct {
	ChatID  int64           `json:"chat_id"`
	Text    string          `json:"text"`
	Buttons []MessageButton `json:"buttons,omitempty"`
}

// WeatherReport is the optional enrichment appended to rendered messages.
type WeatherReport struct {
	Date       string   `json:"date"`
	AirTempC   *float64 `json:"air_temp_c,omitempty"`
	WaterTempC *float64 `json:"water_temp_c,omitempty"`
	Conditions string   `json:"conditions,omitempty"`
}
