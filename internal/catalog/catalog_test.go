package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verte-zerg/leetgulag/internal/model"
)

func TestQuestionsSendsFilters(t *testing.T) {
	var got graphqlRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"data":{"problemsetQuestionList":{"questions":[
			{"title":"Two Sum","titleSlug":"two-sum","difficulty":"Easy","paidOnly":false,"acRate":52.1}
		]}}}`))
	}))
	defer srv.Close()

	questions, err := New(srv.URL).Questions(context.Background(), model.DifficultyEasy, "wpwgkgt")
	require.NoError(t, err)
	require.Len(t, questions, 1)
	assert.Equal(t, "Two Sum", questions[0].Title)
	assert.False(t, questions[0].PaidOnly)

	filters, ok := got.Variables["filters"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "EASY", filters["difficulty"])
	assert.Equal(t, "wpwgkgt", filters["listId"])
}

func TestQuestionsAllDifficultyOmitsFilter(t *testing.T) {
	var got graphqlRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"data":{"problemsetQuestionList":{"questions":[]}}}`))
	}))
	defer srv.Close()

	_, err := New(srv.URL).Questions(context.Background(), model.DifficultyAll, "")
	require.NoError(t, err)
	filters, ok := got.Variables["filters"].(map[string]any)
	require.True(t, ok)
	assert.Empty(t, filters)
}

func TestQuestionsTransportErrors(t *testing.T) {
	cases := map[string]http.HandlerFunc{
		"status": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
		},
		"decode": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`<html>blocked</html>`))
		},
		"graphql": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"errors":[{"message":"rate limited"}]}`))
		},
	}
	for name, handler := range cases {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(handler)
			defer srv.Close()
			_, err := New(srv.URL).Questions(context.Background(), model.DifficultyAll, "")
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrTransport))
		})
	}
}

func TestQuestionsUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()
	_, err := New(url, WithRate(100)).Questions(context.Background(), model.DifficultyAll, "")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTransport)
}
