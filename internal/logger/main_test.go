package logger_test

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/rs/zerolog/log"

	"github.com/peerhive/peerhive/internal/logger"
)

func TestLogger(t *testing.T) {
	type testCase struct {
		name             string
		cfg              logger.Log
		wantErr          bool
		shouldHaveOutPut bool
		outPutIsJSON     bool
	}

	testCases := []testCase{
		{
			name: "missing service name",
			cfg: logger.Log{
				LogLevel: "info",
				AppName:  "peerhive",
			},
			wantErr: true,
		},
		{
			name: "missing app name",
			cfg: logger.Log{
				LogLevel:    "info",
				ServiceName: "peerhive",
			},
			wantErr: true,
		},
		{
			name: "unsupported log level",
			cfg: logger.Log{
				LogLevel:    "loud",
				ServiceName: "peerhive",
				AppName:     "peerhive",
			},
			wantErr: true,
		},
		{
			name: "no logger enabled",
			cfg: logger.Log{
				LogLevel:    "info",
				ServiceName: "peerhive",
				AppName:     "peerhive",
			},
			shouldHaveOutPut: false,
		},
		{
			name: "console enabled log level info",
			cfg: logger.Log{
				LogLevel:    "info",
				ServiceName: "peerhive",
				AppName:     "peerhive",
				Console:     logger.Console{Enabled: true},
			},
			shouldHaveOutPut: true,
			outPutIsJSON:     true,
		},
		{
			name: "console enabled console writer enabled",
			cfg: logger.Log{
				LogLevel:    "info",
				ServiceName: "peerhive",
				AppName:     "peerhive",
				Console:     logger.Console{Enabled: true, UseConsoleWriter: true},
			},
			shouldHaveOutPut: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// capture stdout while the logger writes
			origStdout := os.Stdout

			r, w, err := os.Pipe()
			if err != nil {
				t.Fatalf("failed to create pipe: %v", err)
			}

			os.Stdout = w

			initErr := logger.Init(tc.cfg)
			if initErr == nil {
				log.Info().Msg("logger test entry")
			}

			_ = w.Close()
			os.Stdout = origStdout

			var buf bytes.Buffer
			_, _ = io.Copy(&buf, r)

			if tc.wantErr {
				if initErr == nil {
					t.Fatal("Init() expected error, got nil")
				}

				return
			}

			if initErr != nil {
				t.Fatalf("Init() error = %v", initErr)
			}

			out := buf.String()
			if tc.shouldHaveOutPut != (out != "") {
				t.Fatalf("output presence = %v, want %v (output: %q)", out != "", tc.shouldHaveOutPut, out)
			}

			if tc.outPutIsJSON {
				var parsed map[string]any
				if err := json.Unmarshal([]byte(strings.TrimSpace(out)), &parsed); err != nil {
					t.Fatalf("output is not valid JSON: %v (output: %q)", err, out)
				}

				if parsed["message"] != "logger test entry" {
					t.Errorf("unexpected message field: %v", parsed["message"])
				}
			}
		})
	}
}
