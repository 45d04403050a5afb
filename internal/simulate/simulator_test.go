package simulate

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ellipsesearch/visibility-cli/internal/model"
	"github.com/ellipsesearch/visibility-cli/pkg/perplexity"
)

type fakePerplexity struct {
	response *perplexity.ChatCompletionResponse
	err      error
	lastReq  perplexity.ChatCompletionRequest
}

func (f *fakePerplexity) ChatCompletion(_ context.Context, req perplexity.ChatCompletionRequest) (*perplexity.ChatCompletionResponse, error) {
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	return f.response, nil
}

func answerResponse(text string) *perplexity.ChatCompletionResponse {
	return &perplexity.ChatCompletionResponse{
		Choices: []perplexity.Choice{
			{Message: perplexity.Message{Role: "assistant", Content: text}},
		},
	}
}

func testModels() EngineModels {
	return EngineModels{
		model.EngineChatGPT:    "sonar-pro",
		model.EnginePerplexity: "sonar-pro",
		model.EngineGemini:     "sonar",
	}
}

func TestSimulate_MergesCitationsAndSearchResults(t *testing.T) {
	resp := answerResponse("Acme is the market leader.")
	resp.Citations = []string{"https://acme.com/pricing", "https://review.example.org/top10"}
	resp.SearchResults = []perplexity.SearchResult{
		{URL: "https://acme.com/pricing", Title: "Acme Pricing", Snippet: "Plans from $9"},
		{URL: "https://globex.io/docs", Title: "Globex Docs"},
	}
	api := &fakePerplexity{response: resp}
	client := NewClient(api, testModels(), nil)

	out, err := client.Simulate(context.Background(), model.EnginePerplexity, "best crm", "en", "global")
	require.NoError(t, err)

	assert.Equal(t, "Acme is the market leader.", out.AnswerText)
	require.Len(t, out.SearchResults, 2)
	assert.Equal(t, "Acme Pricing", out.SearchResults[0].Title)

	// The acme.com search result collapses into the existing citation;
	// globex.io arrives as a new source.
	require.Len(t, out.Sources, 3)
	assert.Equal(t, "https://acme.com/pricing", out.Sources[0].URL)
	assert.Equal(t, "https://globex.io/docs", out.Sources[2].URL)
}

func TestSimulate_RecoversUnlinkedDomainMentions(t *testing.T) {
	api := &fakePerplexity{response: answerResponse("Try globex.io for small teams.")}
	client := NewClient(api, testModels(), nil)

	out, err := client.Simulate(context.Background(), model.EnginePerplexity, "best crm", "en", "global")
	require.NoError(t, err)

	require.Len(t, out.Sources, 1)
	assert.Equal(t, "https://globex.io", out.Sources[0].URL)
}

func TestSimulate_ExcludedDomainsNotRecovered(t *testing.T) {
	api := &fakePerplexity{response: answerResponse("A reddit.com thread recommends globex.io.")}
	client := NewClient(api, testModels(), []string{"reddit.com"})

	out, err := client.Simulate(context.Background(), model.EnginePerplexity, "best crm", "en", "global")
	require.NoError(t, err)

	require.Len(t, out.Sources, 1)
	assert.Equal(t, "https://globex.io", out.Sources[0].URL)
}

func TestSimulate_RoutesModelPerEngine(t *testing.T) {
	api := &fakePerplexity{response: answerResponse("ok")}
	client := NewClient(api, testModels(), nil)

	_, err := client.Simulate(context.Background(), model.EngineGemini, "best crm", "en", "global")
	require.NoError(t, err)
	assert.Equal(t, "sonar", api.lastReq.Model)

	_, err = client.Simulate(context.Background(), model.EngineChatGPT, "best crm", "en", "global")
	require.NoError(t, err)
	assert.Equal(t, "sonar-pro", api.lastReq.Model)
}

func TestSimulate_PromptCarriesLanguageAndRegion(t *testing.T) {
	api := &fakePerplexity{response: answerResponse("ok")}
	client := NewClient(api, testModels(), nil)

	_, err := client.Simulate(context.Background(), model.EnginePerplexity, "best crm", "de", "Germany")
	require.NoError(t, err)

	require.Len(t, api.lastReq.Messages, 2)
	system := api.lastReq.Messages[0]
	assert.Equal(t, "system", system.Role)
	assert.Contains(t, system.Content, `"de"`)
	assert.Contains(t, system.Content, "a user in Germany")
	assert.Equal(t, "best crm", api.lastReq.Messages[1].Content)
}

func TestSimulate_DefaultsLanguageAndGlobalRegion(t *testing.T) {
	api := &fakePerplexity{response: answerResponse("ok")}
	client := NewClient(api, testModels(), nil)

	_, err := client.Simulate(context.Background(), model.EnginePerplexity, "best crm", "", "")
	require.NoError(t, err)

	system := api.lastReq.Messages[0]
	assert.Contains(t, system.Content, `"en"`)
	assert.Contains(t, system.Content, "a global audience")
}

func TestSimulate_EmptyAnswerIsAnError(t *testing.T) {
	api := &fakePerplexity{response: &perplexity.ChatCompletionResponse{}}
	client := NewClient(api, testModels(), nil)

	_, err := client.Simulate(context.Background(), model.EnginePerplexity, "best crm", "en", "global")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty answer")
}

func TestSimulate_TransportErrorWrapped(t *testing.T) {
	api := &fakePerplexity{err: eris.New("perplexity: unexpected status 500")}
	client := NewClient(api, testModels(), nil)

	_, err := client.Simulate(context.Background(), model.EnginePerplexity, "best crm", "en", "global")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "perplexity trial")
}
