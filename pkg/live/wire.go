package live

import "encoding/json"

// ── Protocol message types (outgoing) ─────────────────────────────────────────

type setupMessage struct {
	Setup setupConfig `json:"setup"`
}

type setupConfig struct {
	Model             string             `json:"model"`
	GenerationConfig  generationConfig   `json:"generationConfig"`
	SystemInstruction *systemInstruction `json:"systemInstruction,omitempty"`
}

type generationConfig struct {
	ResponseModalities []string      `json:"responseModalities"`
	SpeechConfig       *speechConfig `json:"speechConfig,omitempty"`
}

type speechConfig struct {
	VoiceConfig voiceConfig `json:"voiceConfig"`
}

type voiceConfig struct {
	PrebuiltVoiceConfig prebuiltVoiceConfig `json:"prebuiltVoiceConfig"`
}

type prebuiltVoiceConfig struct {
	VoiceName string `json:"voiceName"`
}

type systemInstruction struct {
	Parts []part `json:"parts"`
}

type realtimeInputMessage struct {
	RealtimeInput realtimeInput `json:"realtimeInput"`
}

type realtimeInput struct {
	MediaChunks []mediaChunk `json:"mediaChunks"`
}

type mediaChunk struct {
	MIMEType string `json:"mimeType"`
	Data     string `json:"data"` // base64-encoded
}

type clientContentMessage struct {
	ClientContent clientContent `json:"clientContent"`
}

type clientContent struct {
	Turns        []contentTurn `json:"turns"`
	TurnComplete bool          `json:"turnComplete"`
}

type contentTurn struct {
	Role  string `json:"role"`
	Parts []part `json:"parts"`
}

// ── Protocol message types (incoming) ─────────────────────────────────────────
//
// The live endpoint is inconsistent about field casing: depending on backend
// version the same message arrives with camelCase or snake_case keys. Each
// incoming type carries both spellings and normalize folds the alternates
// into the canonical fields so the rest of the client only sees one shape.

type serverMessage struct {
	SetupComplete    *json.RawMessage `json:"setupComplete,omitempty"`
	SetupCompleteAlt *json.RawMessage `json:"setup_complete,omitempty"`
	ServerContent    *serverContent   `json:"serverContent,omitempty"`
	ServerContentAlt *serverContent   `json:"server_content,omitempty"`
	Error            *apiError        `json:"error,omitempty"`
}

func (m *serverMessage) normalize() {
	if m.SetupComplete == nil {
		m.SetupComplete = m.SetupCompleteAlt
	}
	if m.ServerContent == nil {
		m.ServerContent = m.ServerContentAlt
	}
	if m.ServerContent != nil {
		m.ServerContent.normalize()
	}
}

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status,omitempty"`
}

type serverContent struct {
	ModelTurn       *modelTurn `json:"modelTurn,omitempty"`
	ModelTurnAlt    *modelTurn `json:"model_turn,omitempty"`
	TurnComplete    bool       `json:"turnComplete,omitempty"`
	TurnCompleteAlt bool       `json:"turn_complete,omitempty"`
	Interrupted     bool       `json:"interrupted,omitempty"`
}

func (sc *serverContent) normalize() {
	if sc.ModelTurn == nil {
		sc.ModelTurn = sc.ModelTurnAlt
	}
	sc.TurnComplete = sc.TurnComplete || sc.TurnCompleteAlt
	if sc.ModelTurn != nil {
		for i := range sc.ModelTurn.Parts {
			sc.ModelTurn.Parts[i].normalize()
		}
	}
}

type modelTurn struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text          string      `json:"text,omitempty"`
	InlineData    *inlineData `json:"inlineData,omitempty"`
	InlineDataAlt *inlineData `json:"inline_data,omitempty"`
}

func (p *part) normalize() {
	if p.InlineData == nil {
		p.InlineData = p.InlineDataAlt
	}
	if p.InlineData != nil {
		p.InlineData.normalize()
	}
}

type inlineData struct {
	MIMEType    string `json:"mimeType,omitempty"`
	MIMETypeAlt string `json:"mime_type,omitempty"`
	Data        string `json:"data"` // base64-encoded
}

func (d *inlineData) normalize() {
	if d.MIMEType == "" {
		d.MIMEType = d.MIMETypeAlt
	}
}
