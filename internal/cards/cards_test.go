package cards_test

import (
	"encoding/json"
	"fmt"
	"testing"

	"burstbot/internal/cards"

	"github.com/stretchr/testify/assert"
)

func card(suit cards.Suit, number int) cards.Card {
	return cards.Card{Suit: suit, Number: number, IsFront: true}
}

func TestRealizedValue(t *testing.T) {
	var tests = []struct {
		hand []cards.Card
		want int
	}{
		{[]cards.Card{card(cards.Spade, 1), card(cards.Heart, 9)}, 20},
		{[]cards.Card{card(cards.Spade, 1), card(cards.Heart, 1), card(cards.Club, 9)}, 21},
		{[]cards.Card{card(cards.Spade, 13), card(cards.Heart, 12)}, 20},
		{[]cards.Card{card(cards.Spade, 1), card(cards.Heart, 1)}, 12},
		{[]cards.Card{card(cards.Spade, 1), card(cards.Heart, 1), card(cards.Club, 10)}, 12},
		{[]cards.Card{card(cards.Spade, 10), card(cards.Heart, 5), card(cards.Club, 9)}, 24},
		{[]cards.Card{card(cards.Spade, 1), card(cards.Heart, 10)}, 21},
		{nil, 0},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%v", tt.hand), func(t *testing.T) {
			assert.Equal(t, tt.want, cards.RealizedValue(tt.hand, cards.Ceiling))
		})
	}
}

func TestValues(t *testing.T) {
	assert := assert.New(t)

	assert.Equal([]int{1, 11}, card(cards.Heart, 1).Values())
	assert.Equal([]int{7}, card(cards.Heart, 7).Values())
	assert.Equal([]int{10}, card(cards.Heart, 11).Values())
	assert.Equal([]int{10}, card(cards.Heart, 13).Values())
}

func TestRender(t *testing.T) {
	assert := assert.New(t)

	front := card(cards.Diamond, 12)
	back := cards.Card{Suit: cards.Club, Number: 1}

	assert.Equal("♦ Q", front.Render(false))
	assert.Equal("♦ Q", front.Render(true))
	assert.Equal(cards.Hidden, back.Render(false))
	assert.Equal("**♣ A**", back.Render(true))
	assert.Equal("♦ Q\n"+cards.Hidden, cards.RenderHand([]cards.Card{front, back}, false))
	assert.Equal("-", cards.RenderHand(nil, true))
}

func TestCardJSON(t *testing.T) {
	assert := assert.New(t)

	var c cards.Card
	err := json.Unmarshal([]byte(`{"suit":"Heart","number":10,"is_front":true}`), &c)
	assert.NoError(err)
	assert.Equal(card(cards.Heart, 10), c)

	data, err := json.Marshal(cards.Card{Suit: cards.Spade, Number: 1})
	assert.NoError(err)
	assert.JSONEq(`{"suit":"Spade","number":1,"is_front":false}`, string(data))

	err = json.Unmarshal([]byte(`{"suit":"Star","number":1}`), &c)
	assert.Error(err)
}
