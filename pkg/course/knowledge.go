// Package course answers questions about the home course from a Bedrock
// knowledge base and looks up other courses on golfcourseapi.com.
package course

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagentruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagentruntime/document"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagentruntime/types"

	"github.com/teslashibe/go-caddy/internal/log"
)

// Holes is the number of holes in a full course.
const Holes = 18

const (
	parQuery       = "golf course holes par information"
	snippetLength  = 200
	holeNumberKey  = "HoleNumber"
	parMetadataKey = "Par"
)

// KnowledgeAPI is the subset of the Bedrock agent runtime client used here.
type KnowledgeAPI interface {
	RetrieveAndGenerate(ctx context.Context, in *bedrockagentruntime.RetrieveAndGenerateInput, optFns ...func(*bedrockagentruntime.Options)) (*bedrockagentruntime.RetrieveAndGenerateOutput, error)
	Retrieve(ctx context.Context, in *bedrockagentruntime.RetrieveInput, optFns ...func(*bedrockagentruntime.Options)) (*bedrockagentruntime.RetrieveOutput, error)
}

// S3Location points at a source document.
type S3Location struct {
	URI string `json:"uri,omitempty"`
}

// Source is a citation backing a generated answer.
type Source struct {
	Type       string     `json:"type"`
	S3Location S3Location `json:"s3Location"`
	Content    string     `json:"content"`
}

// Answer is a generated response with its citations.
type Answer struct {
	Response  string   `json:"response"`
	Sources   []Source `json:"sources"`
	SessionID string   `json:"sessionId"`
}

// KnowledgeConfig configures BedrockKnowledge.
type KnowledgeConfig struct {
	KnowledgeBaseID string
	ModelARN        string
	ClubName        string
}

// BedrockKnowledge queries a Bedrock knowledge base describing the home course.
type BedrockKnowledge struct {
	client KnowledgeAPI
	cfg    KnowledgeConfig
	logger *slog.Logger
}

// NewBedrockKnowledge returns a knowledge source using client.
func NewBedrockKnowledge(client KnowledgeAPI, cfg KnowledgeConfig) *BedrockKnowledge {
	return &BedrockKnowledge{
		client: client,
		cfg:    cfg,
		logger: log.For(log.ComponentCourse),
	}
}

// Ask runs a retrieve-and-generate query.
func (k *BedrockKnowledge) Ask(ctx context.Context, question string) (Answer, error) {
	if k == nil || k.client == nil {
		return Answer{}, ErrNoKnowledgeBase
	}

	out, err := k.client.RetrieveAndGenerate(ctx, &bedrockagentruntime.RetrieveAndGenerateInput{
		Input: &types.RetrieveAndGenerateInput{Text: aws.String(question)},
		RetrieveAndGenerateConfiguration: &types.RetrieveAndGenerateConfiguration{
			Type: types.RetrieveAndGenerateTypeKnowledgeBase,
			KnowledgeBaseConfiguration: &types.KnowledgeBaseRetrieveAndGenerateConfiguration{
				KnowledgeBaseId: aws.String(k.cfg.KnowledgeBaseID),
				ModelArn:        aws.String(k.cfg.ModelARN),
			},
		},
	})
	if err != nil {
		return Answer{}, &KnowledgeError{Op: "query", Err: err}
	}

	ans := Answer{Sources: []Source{}, SessionID: aws.ToString(out.SessionId)}
	if out.Output != nil {
		ans.Response = aws.ToString(out.Output.Text)
	}
	for _, c := range out.Citations {
		for _, ref := range c.RetrievedReferences {
			ans.Sources = append(ans.Sources, sourceOf(ref))
		}
	}
	return ans, nil
}

// HoleInfo describes one hole of the home course.
func (k *BedrockKnowledge) HoleInfo(ctx context.Context, hole int) (Answer, error) {
	if k == nil || k.client == nil {
		return Answer{}, ErrNoKnowledgeBase
	}
	q := fmt.Sprintf("Tell me about hole %d at %s. Include details about the hole layout, hazards, strategy, and any tips for playing this hole.", hole, k.clubName())
	ans, err := k.Ask(ctx, q)
	if err != nil {
		k.logger.Debug("hole query failed", "hole", hole, "error", err)
		return Answer{}, err
	}
	k.logger.Debug("hole query ok", "hole", hole, "sources", len(ans.Sources))
	return ans, nil
}

// CoursePars reads the par of each hole from retrieval result metadata.
// Results without usable HoleNumber and Par values are skipped, so the
// map may hold fewer than 18 holes.
func (k *BedrockKnowledge) CoursePars(ctx context.Context) (map[int]int, error) {
	if k == nil || k.client == nil {
		return nil, ErrNoKnowledgeBase
	}

	out, err := k.client.Retrieve(ctx, &bedrockagentruntime.RetrieveInput{
		KnowledgeBaseId: aws.String(k.cfg.KnowledgeBaseID),
		RetrievalQuery:  &types.KnowledgeBaseQuery{Text: aws.String(parQuery)},
		RetrievalConfiguration: &types.KnowledgeBaseRetrievalConfiguration{
			VectorSearchConfiguration: &types.KnowledgeBaseVectorSearchConfiguration{
				NumberOfResults: aws.Int32(Holes),
			},
		},
	})
	if err != nil {
		return nil, &KnowledgeError{Op: "retrieve", Err: err}
	}

	pars := make(map[int]int, Holes)
	for _, r := range out.RetrievalResults {
		hole, ok := metadataInt(r.Metadata, holeNumberKey)
		if !ok {
			continue
		}
		par, ok := metadataInt(r.Metadata, parMetadataKey)
		if !ok {
			continue
		}
		pars[hole] = par
	}
	k.logger.Debug("course pars retrieved", "results", len(out.RetrievalResults), "holes", len(pars))
	return pars, nil
}

func (k *BedrockKnowledge) clubName() string {
	if k.cfg.ClubName == "" {
		return "Sunny Hills Golf Club"
	}
	return k.cfg.ClubName
}

func sourceOf(ref types.RetrievedReference) Source {
	var s Source
	if loc := ref.Location; loc != nil {
		s.Type = string(loc.Type)
		if loc.S3Location != nil {
			s.S3Location.URI = aws.ToString(loc.S3Location.Uri)
		}
	}
	if ref.Content != nil {
		if text := aws.ToString(ref.Content.Text); text != "" {
			s.Content = truncate(text, snippetLength) + "..."
		}
	}
	return s
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// metadataInt reads a positive integer from a metadata document whose value
// may be a number or a numeric string.
func metadataInt(md map[string]document.Interface, key string) (int, bool) {
	doc, ok := md[key]
	if !ok || doc == nil {
		return 0, false
	}
	var v any
	if err := doc.UnmarshalSmithyDocument(&v); err != nil {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(fmt.Sprint(v)), 64)
	if err != nil || f <= 0 {
		return 0, false
	}
	return int(f), true
}
