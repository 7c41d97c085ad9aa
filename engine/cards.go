package engine

// Card is one of the eleven Apologies card faces.
type Card string

const (
	Card1         Card = "CARD_1"
	Card2         Card = "CARD_2"
	Card3         Card = "CARD_3"
	Card4         Card = "CARD_4"
	Card5         Card = "CARD_5"
	Card7         Card = "CARD_7"
	Card8         Card = "CARD_8"
	Card10        Card = "CARD_10"
	Card11        Card = "CARD_11"
	Card12        Card = "CARD_12"
	CardApologies Card = "CARD_APOLOGIES"
)

// deckOrder fixes iteration order when building a fresh deck.
var deckOrder = []Card{
	Card1, Card2, Card3, Card4, Card5,
	Card7, Card8, Card10, Card11, Card12,
	CardApologies,
}

// deckCounts holds the number of copies of each card in a full deck,
// forty-five cards in all.
var deckCounts = map[Card]int{
	Card1:         5,
	Card2:         4,
	Card3:         4,
	Card4:         4,
	Card5:         4,
	Card7:         4,
	Card8:         4,
	Card10:        4,
	Card11:        4,
	Card12:        4,
	CardApologies: 4,
}

// adultHandSize is the hand dealt to each player in Adult mode.
const adultHandSize = 5

// Label returns the face printed on the card, for descriptions and logs.
func (c Card) Label() string {
	switch c {
	case CardApologies:
		return "Apologies"
	default:
		return string(c[len("CARD_"):])
	}
}

func newDeck() []Card {
	deck := make([]Card, 0, 45)
	for _, card := range deckOrder {
		for i := 0; i < deckCounts[card]; i++ {
			deck = append(deck, card)
		}
	}
	return deck
}
