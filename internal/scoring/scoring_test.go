package scoring

import (
	"reflect"
	"testing"
	"time"

	"feedposter/internal/article"
)

var now = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func TestBuildKeywordWeights(t *testing.T) {
	tests := []struct {
		name      string
		inclusion []string
		exclusion []string
		want      map[string]int
	}{
		{
			name:      "weights parsed with defaults",
			inclusion: []string{"release date: 10", "trailer"},
			want:      map[string]int{"release date": 10, "trailer": 1},
		},
		{
			name:      "exclusion negates",
			exclusion: []string{"deal: 10", "sponsored"},
			want:      map[string]int{"deal": -10, "sponsored": -1},
		},
		{
			name:      "exclusion wins over inclusion",
			inclusion: []string{"deal: 3"},
			exclusion: []string{"deal: 7"},
			want:      map[string]int{"deal": -7},
		},
		{
			name:      "negative inclusion weight takes absolute value",
			inclusion: []string{"remaster: -4"},
			want:      map[string]int{"remaster": 4},
		},
		{
			name:      "entries lowercased and trimmed",
			inclusion: []string{"  Release Date : 10"},
			want:      map[string]int{"release date": 10},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BuildKeywordWeights(tt.inclusion, tt.exclusion)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("BuildKeywordWeights = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestScoreTitleMatch(t *testing.T) {
	// Inclusion keyword "release date: 10" matched in the title earns
	// base 10 plus ceil(10*0.5) title bonus.
	a := article.Article{
		Title: "Big Game Release Date Confirmed",
		Link:  "https://nowhere.example/x",
	}
	weights := BuildKeywordWeights([]string{"release date: 10"}, nil)

	bd := Score(a, weights, nil, nil, now)
	if bd.Base != 10 {
		t.Errorf("Base = %d, want 10", bd.Base)
	}
	if bd.TitleBonus != 5 {
		t.Errorf("TitleBonus = %d, want 5", bd.TitleBonus)
	}
	if bd.Total < 15 {
		t.Errorf("Total = %d, want >= 15", bd.Total)
	}
}

func TestScoreExclusionInDescription(t *testing.T) {
	// Exclusion keyword matched only in the description: negative base,
	// no title bonus.
	a := article.Article{
		Title:       "Weekend Roundup",
		Description: "The best deal on consoles this week",
	}
	weights := BuildKeywordWeights(nil, []string{"deal: 10"})

	bd := Score(a, weights, nil, nil, now)
	if bd.Base != -10 {
		t.Errorf("Base = %d, want -10", bd.Base)
	}
	if bd.TitleBonus != 0 {
		t.Errorf("TitleBonus = %d, want 0", bd.TitleBonus)
	}
}

func TestScoreNegativeKeywordInTitleNoBonus(t *testing.T) {
	a := article.Article{Title: "Hot deal on games"}
	weights := BuildKeywordWeights(nil, []string{"deal: 4"})

	bd := Score(a, weights, nil, nil, now)
	if bd.Base != -4 {
		t.Errorf("Base = %d, want -4", bd.Base)
	}
	if bd.TitleBonus != 0 {
		t.Errorf("TitleBonus = %d, want 0 for negative keyword", bd.TitleBonus)
	}
}

func TestScoreKeywordCountsOncePerField(t *testing.T) {
	// A keyword in both title and description contributes base once.
	a := article.Article{
		Title:       "Trailer drops",
		Description: "watch the trailer here",
	}
	weights := BuildKeywordWeights([]string{"trailer: 2"}, nil)

	bd := Score(a, weights, nil, nil, now)
	if bd.Base != 2 {
		t.Errorf("Base = %d, want 2", bd.Base)
	}
	if bd.TitleBonus != 1 {
		t.Errorf("TitleBonus = %d, want 1", bd.TitleBonus)
	}
}

func TestRecencyBonusSteps(t *testing.T) {
	tests := []struct {
		age  time.Duration
		want int
	}{
		{30 * time.Minute, 5},
		{2 * time.Hour, 5},
		{3 * time.Hour, 3},
		{6 * time.Hour, 3},
		{10 * time.Hour, 1},
		{13 * time.Hour, 0},
		{48 * time.Hour, 0},
	}
	for _, tt := range tests {
		a := article.Article{Title: "x y", Published: now.Add(-tt.age)}
		bd := Score(a, nil, nil, nil, now)
		if bd.RecencyBonus != tt.want {
			t.Errorf("age %v: RecencyBonus = %d, want %d", tt.age, bd.RecencyBonus, tt.want)
		}
	}
}

func TestRecencyZeroTimestamp(t *testing.T) {
	bd := Score(article.Article{Title: "undated"}, nil, nil, nil, now)
	if bd.RecencyBonus != 0 {
		t.Errorf("RecencyBonus = %d, want 0 for missing timestamp", bd.RecencyBonus)
	}
}

func TestAuthorityAdjustment(t *testing.T) {
	authority := map[string]int{"gamespot.com": 3, "blogspam.net": -5}
	tests := []struct {
		link string
		want int
	}{
		{"https://www.gamespot.com/news/x", 3},
		{"https://blogspam.net/y", -5},
		{"https://unknown.example/z", 0},
	}
	for _, tt := range tests {
		bd := Score(article.Article{Title: "t", Link: tt.link}, nil, authority, nil, now)
		if bd.AuthorityAdjustment != tt.want {
			t.Errorf("link %s: AuthorityAdjustment = %d, want %d", tt.link, bd.AuthorityAdjustment, tt.want)
		}
	}
}

func TestLearnedBias(t *testing.T) {
	a := article.Article{Title: "New Controller Leaked"}
	biasMap := map[string]int{"controller": -2, "leaked": -1, "unrelated": -9}

	bd := Score(a, nil, nil, biasMap, now)
	if bd.LearnedBias != -3 {
		t.Errorf("LearnedBias = %d, want -3", bd.LearnedBias)
	}

	// Nil bias map disables the adjustment entirely.
	bd = Score(a, nil, nil, nil, now)
	if bd.LearnedBias != 0 {
		t.Errorf("LearnedBias = %d, want 0 with nil map", bd.LearnedBias)
	}
}

func TestScoreDeterministic(t *testing.T) {
	a := article.Article{
		Title:       "Big Game Release Date Confirmed",
		Link:        "https://www.gamespot.com/news/big-game",
		Description: "A trailer too",
		Published:   now.Add(-90 * time.Minute),
	}
	weights := BuildKeywordWeights([]string{"release date: 10", "trailer: 3"}, []string{"deal"})
	authority := map[string]int{"gamespot.com": 2}
	biasMap := map[string]int{"confirmed": -1}

	first := Score(a, weights, authority, biasMap, now)
	second := Score(a, weights, authority, biasMap, now)
	if first != second {
		t.Errorf("Score not deterministic: %+v != %+v", first, second)
	}
	sum := first.Base + first.TitleBonus + first.RecencyBonus + first.AuthorityAdjustment + first.LearnedBias
	if first.Total != sum {
		t.Errorf("Total = %d, want sum of components %d", first.Total, sum)
	}
}
