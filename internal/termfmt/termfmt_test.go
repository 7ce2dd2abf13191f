package termfmt

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStyle_Format(t *testing.T) {
	SetEnabled(true)
	defer SetEnabled(true)

	assert.Equal(t, "\x1b[1m42\x1b[0m", fmt.Sprintf("%d", Bold().V(42)))
	assert.Equal(t, "\x1b[31m  ok\x1b[0m", fmt.Sprintf("%4s", Fg(Red).V("ok")))
	assert.Equal(t, "\x1b[1m\x1b[92mx\x1b[0m\x1b[0m", fmt.Sprintf("%s", Bold().Fg(LightGreen).V("x")))
	assert.Equal(t, "\x1b[39mx\x1b[0m", fmt.Sprintf("%s", Fg(DefaultColor).V("x")))
}

func TestStyle_Format_Disabled(t *testing.T) {
	SetEnabled(false)
	defer SetEnabled(true)

	assert.Equal(t, "failed: 3", fmt.Sprintf("failed: %d", Fg(Red).Bold().V(3)))
}

func TestStyle_Format_StripsUnprintable(t *testing.T) {
	SetEnabled(false)
	defer SetEnabled(true)

	assert.Equal(t, "ab", fmt.Sprintf("%s", Bold().V("a\x1b\x07b")))
}

func TestStyle_With_DoesNotAlias(t *testing.T) {
	SetEnabled(true)
	defer SetEnabled(true)

	base := Bold()
	red := base.Fg(Red)
	green := base.Fg(Green)
	assert.Equal(t, "\x1b[1m\x1b[31mx\x1b[0m\x1b[0m", fmt.Sprintf("%s", red.V("x")))
	assert.Equal(t, "\x1b[1m\x1b[32mx\x1b[0m\x1b[0m", fmt.Sprintf("%s", green.V("x")))
}
