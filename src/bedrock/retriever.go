package bedrock

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagentruntime"
	agentdocument "github.com/aws/aws-sdk-go-v2/service/bedrockagentruntime/document"
	agenttypes "github.com/aws/aws-sdk-go-v2/service/bedrockagentruntime/types"

	"github.com/wirebird/wirebird/src/rag"
)

// retrieveAPI is the slice of the agent runtime client the retriever uses.
type retrieveAPI interface {
	Retrieve(ctx context.Context, params *bedrockagentruntime.RetrieveInput, optFns ...func(*bedrockagentruntime.Options)) (*bedrockagentruntime.RetrieveOutput, error)
}

// KnowledgeBaseRetriever fetches document chunks from a Bedrock knowledge
// base via the agent runtime Retrieve API.
type KnowledgeBaseRetriever struct {
	client retrieveAPI
}

var _ rag.Retriever = (*KnowledgeBaseRetriever)(nil)

// NewKnowledgeBaseRetriever builds a retriever over an existing agent
// runtime client.
func NewKnowledgeBaseRetriever(client *bedrockagentruntime.Client) *KnowledgeBaseRetriever {
	return &KnowledgeBaseRetriever{client: client}
}

// NewAgentRuntimeClient loads AWS configuration for the given region and
// returns a Bedrock agent runtime client.
func NewAgentRuntimeClient(ctx context.Context, region string) (*bedrockagentruntime.Client, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return bedrockagentruntime.NewFromConfig(cfg), nil
}

// Retrieve implements rag.Retriever. A non-empty category narrows the
// vector search with a metadata equality filter.
func (r *KnowledgeBaseRetriever) Retrieve(ctx context.Context, query, knowledgeBaseID string, numberOfResults int, category string) ([]rag.Result, error) {
	vectorConfig := &agenttypes.KnowledgeBaseVectorSearchConfiguration{
		NumberOfResults: aws.Int32(int32(numberOfResults)),
	}
	if category != "" {
		vectorConfig.Filter = &agenttypes.RetrievalFilterMemberEquals{
			Value: agenttypes.FilterAttribute{
				Key:   aws.String("category"),
				Value: agentdocument.NewLazyDocument(category),
			},
		}
	}

	output, err := r.client.Retrieve(ctx, &bedrockagentruntime.RetrieveInput{
		KnowledgeBaseId: aws.String(knowledgeBaseID),
		RetrievalQuery:  &agenttypes.KnowledgeBaseQuery{Text: aws.String(query)},
		RetrievalConfiguration: &agenttypes.KnowledgeBaseRetrievalConfiguration{
			VectorSearchConfiguration: vectorConfig,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("knowledge base retrieve failed: %w", err)
	}

	results := make([]rag.Result, 0, len(output.RetrievalResults))
	for _, item := range output.RetrievalResults {
		result := rag.Result{Source: "unknown"}
		if item.Content != nil {
			result.Content = aws.ToString(item.Content.Text)
		}
		if item.Score != nil {
			result.Score = *item.Score
		}
		if item.Location != nil && item.Location.S3Location != nil {
			result.Source = aws.ToString(item.Location.S3Location.Uri)
		}
		if len(item.Metadata) > 0 {
			result.Metadata = make(map[string]string, len(item.Metadata))
			for key, doc := range item.Metadata {
				result.Metadata[key] = documentText(doc)
			}
		}
		results = append(results, result)
	}
	return results, nil
}

// documentText renders an opaque metadata document as a plain string.
func documentText(doc interface{}) string {
	raw, err := json.Marshal(doc)
	if err != nil {
		return ""
	}
	if s, err := strconv.Unquote(string(raw)); err == nil {
		return s
	}
	return string(raw)
}
