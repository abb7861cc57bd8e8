package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func score(v int) *int { return &v }

func TestReviewRating_Validate(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		rating  ReviewRating
		wantErr bool
	}{
		{"empty rating", ReviewRating{}, false},
		{"overall only", ReviewRating{Overall: score(4)}, false},
		{"full scorecard", ReviewRating{
			Overall: score(5), Cleanliness: score(4), Communication: score(5),
			Location: score(3), Accuracy: score(4), Value: score(5),
		}, false},
		{"overall too low", ReviewRating{Overall: score(0)}, true},
		{"overall too high", ReviewRating{Overall: score(6)}, true},
		{"aspect out of range", ReviewRating{Overall: score(4), Location: score(9)}, true},
		{"aspect without overall", ReviewRating{Cleanliness: score(4)}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := tc.rating.Validate()
			if tc.wantErr {
				assert.True(t, IsCode(err, CodeValidationError))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestMessage_QualifiesForAggregation(t *testing.T) {
	t.Parallel()

	parentID := uint(1)

	rated := Message{Rating: ReviewRating{Overall: score(4)}}
	assert.True(t, rated.QualifiesForAggregation())

	hidden := Message{Rating: ReviewRating{Overall: score(4)}, IsHidden: true}
	assert.False(t, hidden.QualifiesForAggregation())

	reply := Message{Rating: ReviewRating{Overall: score(4)}, ParentID: &parentID}
	assert.False(t, reply.QualifiesForAggregation())
	assert.False(t, reply.IsTopLevel())

	comment := Message{Content: "nice place"}
	assert.False(t, comment.QualifiesForAggregation())
	assert.False(t, comment.HasRating())
	assert.True(t, comment.IsTopLevel())
}
