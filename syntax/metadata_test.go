package syntax

import (
	"slices"
	"testing"
)

func TestParseMetadata(t *testing.T) {
	src := `#!/bin/bash
# @Version: 1.0.0
# @Author: Test User
# @Description: Test script
# @Dependency: curl
# @Dependency: jq 'my tool'
# @License: MIT
#   plain comment

echo "Script content"
# @Ignored: after the header
`
	m := ParseMetadata([]byte(src))

	if m.Shebang != "#!/bin/bash" {
		t.Errorf("unexpected shebang %q", m.Shebang)
	}

	if m.Version != "1.0.0" || m.Author != "Test User" || m.Description != "Test script" {
		t.Errorf("unexpected tags %+v", m)
	}

	if want := []string{"curl", "jq", "my tool"}; !slices.Equal(m.Dependencies, want) {
		t.Errorf("expected dependencies %v, got %v", want, m.Dependencies)
	}

	if len(m.Headers) != 1 || m.Headers["License"] != "MIT" {
		t.Errorf("unexpected headers %v", m.Headers)
	}
}

func TestParseMetadata_Empty(t *testing.T) {
	tests := []string{"", "echo hi\n# @Version: 2", "\n\n"}

	for _, src := range tests {
		m := ParseMetadata([]byte(src))
		if m.Shebang != "" || m.Version != "" || len(m.Dependencies) != 0 || len(m.Headers) != 0 {
			t.Errorf("%q: expected empty metadata, got %+v", src, m)
		}
	}
}

func TestPrint_HeaderRoundTrip(t *testing.T) {
	src := "#!/bin/sh\n# @Author: A\n# @Dependency: 'odd name' jq\n# @Team: core\necho\n"

	f := mustParse(t, src)
	again := ParseMetadata([]byte(String(f)))

	if again.Shebang != "#!/bin/sh" || again.Author != "A" || again.Headers["Team"] != "core" {
		t.Errorf("header lost in printing: %+v", again)
	}

	if want := []string{"odd name", "jq"}; !slices.Equal(again.Dependencies, want) {
		t.Errorf("expected %v, got %v", want, again.Dependencies)
	}
}
