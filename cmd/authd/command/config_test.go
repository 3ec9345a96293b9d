package command

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/pixil98/go-testutil"
)

func TestConfig_Validate(t *testing.T) {
	dir := t.TempDir()

	tests := map[string]struct {
		json    string
		expErrs []string
	}{
		"valid": {
			json: `{
				"tick_interval": "100ms",
				"listeners": [{"protocol": "telnet", "port": 4000}, {"protocol": "websocket", "port": 4080, "path": "/play"}],
				"storage": {"entities": {"path": "` + dir + `"}},
				"coordinator": {"confirm_timeout": "3s", "kinds": {"pickup": {"confirm_timeout": "1s"}}},
				"session": {"request_timeout": "2s", "messages": {"gained": "{{ .Name }} is yours."}},
				"journal": {"path": "data/journal.sqlite"}
			}`,
		},
		"tick too short": {
			json:    `{"tick_interval": "1ms", "storage": {"entities": {"path": "` + dir + `"}}}`,
			expErrs: []string{"tick_interval must be at least 10ms"},
		},
		"missing storage path": {
			json:    `{"tick_interval": "1s"}`,
			expErrs: []string{"entities: path is required"},
		},
		"listener without port": {
			json:    `{"tick_interval": "1s", "listeners": [{"protocol": "ssh"}], "storage": {"entities": {"path": "` + dir + `"}}}`,
			expErrs: []string{"listener 0: port must be set"},
		},
		"host key on telnet": {
			json:    `{"tick_interval": "1s", "listeners": [{"protocol": "telnet", "port": 23, "host_key_path": "/k"}], "storage": {"entities": {"path": "` + dir + `"}}}`,
			expErrs: []string{"host_key_path only applies to ssh"},
		},
		"websocket path": {
			json:    `{"tick_interval": "1s", "listeners": [{"protocol": "websocket", "port": 8080, "path": "play"}, {"protocol": "telnet", "port": 23, "path": "/ws"}], "storage": {"entities": {"path": "` + dir + `"}}}`,
			expErrs: []string{"listener 0: path must start with /", "listener 1: path only applies to websocket"},
		},
		"confirm timeout on mount": {
			json:    `{"tick_interval": "1s", "storage": {"entities": {"path": "` + dir + `"}}, "coordinator": {"kinds": {"mount": {"confirm_timeout": "1s"}}}}`,
			expErrs: []string{"mount claims are not confirmed"},
		},
		"unknown kind": {
			json:    `{"tick_interval": "1s", "storage": {"entities": {"path": "` + dir + `"}}, "coordinator": {"kinds": {"boat": {}}}}`,
			expErrs: []string{`unknown kind "boat"`},
		},
		"bad durations": {
			json: `{"tick_interval": "soon", "storage": {"entities": {"path": "` + dir + `"}},
				"nats": {"start_timeout": "x"}, "coordinator": {"confirm_timeout": "-1s"}, "session": {"request_timeout": "y"}}`,
			expErrs: []string{
				"parsing tick_interval",
				"parsing start_timeout",
				"confirm_timeout must be positive",
				"parsing request_timeout",
			},
		},
		"journal backlog": {
			json:    `{"tick_interval": "1s", "storage": {"entities": {"path": "` + dir + `"}}, "journal": {"path": "data/journal.sqlite", "backlog": -1}}`,
			expErrs: []string{"backlog must not be negative"},
		},
		"journal directory only": {
			json:    `{"tick_interval": "1s", "storage": {"entities": {"path": "` + dir + `"}}, "journal": {"path": "data"}}`,
			expErrs: []string{"needs a file name"},
		},
		"unknown message event": {
			json:    `{"tick_interval": "1s", "storage": {"entities": {"path": "` + dir + `"}}, "session": {"messages": {"waved": "hi"}}}`,
			expErrs: []string{`unknown event "waved"`},
		},
		"broken message template": {
			json:    `{"tick_interval": "1s", "storage": {"entities": {"path": "` + dir + `"}}, "session": {"messages": {"lost": "{{ .Name "}}}`,
			expErrs: []string{"parsing lost template"},
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			var cfg Config
			if err := json.Unmarshal([]byte(tt.json), &cfg); err != nil {
				t.Fatalf("unmarshalling config: %v", err)
			}

			err := cfg.Validate()
			if len(tt.expErrs) == 0 {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected errors %v, got nil", tt.expErrs)
			}
			for _, e := range tt.expErrs {
				if !strings.Contains(err.Error(), e) {
					t.Errorf("error %q does not contain %q", err.Error(), e)
				}
			}
		})
	}
}

func TestListenerType_UnmarshalText(t *testing.T) {
	var lt ListenerType
	testutil.AssertErrorContains(t, lt.UnmarshalText([]byte("gopher")), "unknown listener type")

	tests := map[string]ListenerType{
		"telnet":    ListenerTypeTelnet,
		"ssh":       ListenerTypeSSH,
		"websocket": ListenerTypeWebSocket,
	}
	for text, exp := range tests {
		t.Run(text, func(t *testing.T) {
			var lt ListenerType
			if err := lt.UnmarshalText([]byte(text)); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			testutil.AssertEqual(t, "type", lt, exp)
		})
	}
}
