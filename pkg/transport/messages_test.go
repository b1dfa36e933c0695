package transport

import (
	"encoding/json"
	"testing"
)

func TestParseMessage(t *testing.T) {
	tests := []struct {
		name string
		data string
		want Message
	}{
		{
			"server hello",
			`{"type":"hello","session_id":"s1","transport":"websocket","audio_params":{"format":"opus","sample_rate":24000,"channels":1,"frame_duration":60}}`,
			Message{Type: TypeHello, SessionID: "s1", Transport: "websocket"},
		},
		{
			"tts start",
			`{"type":"tts","state":"start"}`,
			Message{Type: TypeTTS, State: TTSStateStart},
		},
		{
			"tts sentence",
			`{"type":"tts","state":"sentence_start","text":"hello there"}`,
			Message{Type: TypeTTS, State: TTSStateSentenceStart, Text: "hello there"},
		},
		{
			"stt",
			`{"type":"stt","text":"turn on the light"}`,
			Message{Type: TypeSTT, Text: "turn on the light"},
		},
		{
			"llm emotion",
			`{"type":"llm","emotion":"happy"}`,
			Message{Type: TypeLLM, Emotion: "happy"},
		},
		{
			"system reboot",
			`{"type":"system","command":"reboot"}`,
			Message{Type: TypeSystem, Command: "reboot"},
		},
		{
			"alert",
			`{"type":"alert","status":"WARN","message":"low battery","emotion":"sad"}`,
			Message{Type: TypeAlert, Status: "WARN", Message: "low battery", Emotion: "sad"},
		},
	}

	for _, tc := range tests {
		m, err := ParseMessage([]byte(tc.data))
		if err != nil {
			t.Errorf("%s: ParseMessage: %v", tc.name, err)
			continue
		}
		if m.Type != tc.want.Type || m.State != tc.want.State || m.Text != tc.want.Text ||
			m.Emotion != tc.want.Emotion || m.Command != tc.want.Command ||
			m.Status != tc.want.Status || m.Message != tc.want.Message ||
			m.SessionID != tc.want.SessionID {
			t.Errorf("%s: got %+v; want %+v", tc.name, m, tc.want)
		}
	}
}

func TestParseMessage_AudioParams(t *testing.T) {
	m, err := ParseMessage([]byte(`{"type":"hello","audio_params":{"format":"opus","sample_rate":24000,"channels":1,"frame_duration":60}}`))
	if err != nil {
		t.Fatalf("ParseMessage: %v", err)
	}
	if m.AudioParams == nil {
		t.Fatal("AudioParams is nil")
	}
	if m.AudioParams.SampleRate != 24000 || m.AudioParams.FrameDuration != 60 {
		t.Errorf("AudioParams = %+v; want rate 24000, frame 60", m.AudioParams)
	}
}

func TestParseMessage_Errors(t *testing.T) {
	if _, err := ParseMessage([]byte(`not json`)); err == nil {
		t.Error("ParseMessage accepted invalid JSON")
	}
	if _, err := ParseMessage([]byte(`{"state":"start"}`)); err == nil {
		t.Error("ParseMessage accepted message without type")
	}
}

func TestListenMessage_Wire(t *testing.T) {
	m := listenMessage("sess", "start")
	m.Mode = ListeningModeAutoStop.String()
	data, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if out["type"] != "listen" || out["state"] != "start" || out["mode"] != "auto" || out["session_id"] != "sess" {
		t.Errorf("wire form = %v", out)
	}
	if _, ok := out["text"]; ok {
		t.Error("empty fields should be omitted")
	}
}
