package cmd

import (
	"errors"
	"testing"

	"github.com/spf13/afero"

	"github.com/ardnew/shgo/resolve"
)

func TestLoadConfig(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		wantErr error
		check   func(t *testing.T, cfg Config)
	}{
		{
			name: "missing_file",
			check: func(t *testing.T, cfg Config) {
				if cfg.Resolve.MaxDepth != resolve.DefaultMaxDepth {
					t.Errorf("MaxDepth = %d, want %d", cfg.Resolve.MaxDepth, resolve.DefaultMaxDepth)
				}
			},
		},
		{
			name: "overrides",
			content: `
level: debug
resolve:
  max_depth: 3
  precedence: [static, system]
  rules:
    - name: assets
      category: static
      when: path startsWith "/opt/assets/"
      class: embed
generate:
  parallel: 2
  decisions: choices.yaml
  options:
    pipefail: true
`,
			check: func(t *testing.T, cfg Config) {
				if cfg.Resolve.MaxDepth != 3 {
					t.Errorf("MaxDepth = %d, want 3", cfg.Resolve.MaxDepth)
				}

				want := []resolve.Category{resolve.CategoryStatic, resolve.CategorySystem}
				if len(cfg.Resolve.Precedence) != 2 ||
					cfg.Resolve.Precedence[0] != want[0] || cfg.Resolve.Precedence[1] != want[1] {
					t.Errorf("Precedence = %v, want %v", cfg.Resolve.Precedence, want)
				}

				if len(cfg.Resolve.Rules) != 1 || cfg.Resolve.Rules[0].Class != resolve.Embed {
					t.Errorf("Rules = %+v", cfg.Resolve.Rules)
				}

				if !cfg.Resolve.FailClosed {
					t.Error("FailClosed default was lost")
				}

				if cfg.Generate.Parallel != 2 || cfg.Generate.Decisions != "choices.yaml" {
					t.Errorf("Generate = %+v", cfg.Generate)
				}

				if !cfg.Generate.Options.Pipefail {
					t.Error("Pipefail = false, want true")
				}
			},
		},
		{
			name:    "invalid_depth",
			content: "resolve:\n  max_depth: 0\n",
			wantErr: ErrConfig,
		},
		{
			name:    "duplicate_precedence",
			content: "resolve:\n  precedence: [size, size]\n",
			wantErr: ErrConfig,
		},
		{
			name:    "rule_without_expression",
			content: "resolve:\n  rules:\n    - name: empty\n      class: embed\n",
			wantErr: ErrConfig,
		},
		{
			name:    "malformed",
			content: "resolve: [\n",
			wantErr: ErrConfig,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			fs := afero.NewMemMapFs()
			if tt.content != "" {
				if err := afero.WriteFile(fs, "/config.yaml", []byte(tt.content), 0o644); err != nil {
					t.Fatal(err)
				}
			}

			cfg, err := LoadConfig(fs, "/config.yaml")
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("LoadConfig() error = %v, want %v", err, tt.wantErr)
				}

				return
			}

			if err != nil {
				t.Fatalf("LoadConfig() error = %v", err)
			}

			tt.check(t, cfg)
		})
	}
}
