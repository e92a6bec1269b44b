package graph

import (
	"net/http"

	"github.com/graphql-go/graphql"

	"forum/pkg/common"
	"forum/pkg/loader"
	"forum/pkg/logger"
)

type Handler struct {
	Schema graphql.Schema

	// Batch fetchers behind the per-request loaders.
	UserFetcher loader.UserFetcher
	VoteFetcher loader.VoteFetcher
}

func NewHandler(schema graphql.Schema, uf loader.UserFetcher, vf loader.VoteFetcher) *Handler {
	return &Handler{
		Schema:      schema,
		UserFetcher: uf,
		VoteFetcher: vf,
	}
}

type gqlRequest struct {
	Query         string                 `json:"query"`
	OperationName string                 `json:"operationName"`
	Variables     map[string]interface{} `json:"variables"`
}

// ServeHTTP executes one GraphQL request. Fresh loaders are attached to
// the context here so nothing resolved for one viewer can ever be served
// to another.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	req := new(gqlRequest)
	if err := common.ParseReqBody(r.Body, req); err != nil {
		logger.Log(r.Context()).Errorf("can't parse GraphQL request body: %v", err)
		common.WriteMsg(w, "bad request format", http.StatusBadRequest)
		return
	}

	ctx := WithLoaders(r.Context(), &RequestLoaders{
		Users: loader.NewUserLoader(h.UserFetcher),
		Votes: loader.NewVoteLoader(h.VoteFetcher),
	})

	result := graphql.Do(graphql.Params{
		Schema:         h.Schema,
		RequestString:  req.Query,
		OperationName:  req.OperationName,
		VariableValues: req.Variables,
		Context:        ctx,
	})

	common.WriteRespJSON(w, result)
}
