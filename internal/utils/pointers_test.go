package utils_test

import (
	"testing"

	"github.com/jrsteele09/go-auth-session/internal/utils"
	"github.com/stretchr/testify/require"
)

type profile struct{ Nickname string }

func TestValue(t *testing.T) {
	require.Equal(t, profile{}, utils.Value[profile](nil))
	require.Equal(t, profile{Nickname: "A"}, utils.Value(&profile{Nickname: "A"}))
}

func TestClone(t *testing.T) {
	require.Nil(t, utils.Clone[profile](nil))

	orig := &profile{Nickname: "A"}
	c := utils.Clone(orig)
	require.Equal(t, orig, c)
	require.NotSame(t, orig, c)

	c.Nickname = "B"
	require.Equal(t, "A", orig.Nickname)
}
