package keyboard_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/ledger-bot/internal/bot/keyboard"
)

func TestReplyKeyboard(t *testing.T) {
	rows := [][]string{
		{"/input", "/lihatbulanini"},
		{},
		{"/cancel"},
	}

	markup := keyboard.ReplyKeyboard(rows)
	assert.True(t, markup.ResizeKeyboard)

	expected := [][]string{{"/input", "/lihatbulanini"}, {"/cancel"}}
	require.Len(t, markup.ReplyKeyboard, len(expected))
	for i, row := range expected {
		require.Len(t, markup.ReplyKeyboard[i], len(row))
		for j, text := range row {
			assert.Equal(t, text, markup.ReplyKeyboard[i][j].Text)
		}
	}
}
