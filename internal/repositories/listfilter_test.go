package repositories

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestListFilterNormalize(t *testing.T) {
	tests := []struct {
		name      string
		filter    ListFilter
		wantPage  int
		wantLimit int
	}{
		{"zero values", ListFilter{}, 1, 20},
		{"in range", ListFilter{Page: 3, Limit: 50}, 3, 50},
		{"negative page", ListFilter{Page: -2, Limit: 10}, 1, 10},
		{"limit over cap", ListFilter{Page: 1, Limit: 500}, 1, 20},
		{"limit at cap", ListFilter{Page: 1, Limit: 100}, 1, 100},
		{"negative limit", ListFilter{Page: 1, Limit: -1}, 1, 20},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, limit := tt.filter.Normalize()
			assert.Equal(t, tt.wantPage, page)
			assert.Equal(t, tt.wantLimit, limit)
		})
	}
}
