package course

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagentruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagentruntime/document"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagentruntime/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeKnowledge struct {
	ragIn  *bedrockagentruntime.RetrieveAndGenerateInput
	ragOut *bedrockagentruntime.RetrieveAndGenerateOutput
	retIn  *bedrockagentruntime.RetrieveInput
	retOut *bedrockagentruntime.RetrieveOutput
	err    error
}

func (f *fakeKnowledge) RetrieveAndGenerate(_ context.Context, in *bedrockagentruntime.RetrieveAndGenerateInput, _ ...func(*bedrockagentruntime.Options)) (*bedrockagentruntime.RetrieveAndGenerateOutput, error) {
	f.ragIn = in
	if f.err != nil {
		return nil, f.err
	}
	return f.ragOut, nil
}

func (f *fakeKnowledge) Retrieve(_ context.Context, in *bedrockagentruntime.RetrieveInput, _ ...func(*bedrockagentruntime.Options)) (*bedrockagentruntime.RetrieveOutput, error) {
	f.retIn = in
	if f.err != nil {
		return nil, f.err
	}
	return f.retOut, nil
}

var testKB = KnowledgeConfig{
	KnowledgeBaseID: "KB12345678",
	ModelARN:        "arn:aws:bedrock:us-east-1::foundation-model/amazon.nova-micro-v1:0",
	ClubName:        "Sunny Hills Golf Club",
}

func TestHoleInfo(t *testing.T) {
	long := strings.Repeat("a", 250)
	fake := &fakeKnowledge{ragOut: &bedrockagentruntime.RetrieveAndGenerateOutput{
		Output:    &types.RetrieveAndGenerateOutput{Text: aws.String("Hole 7 is a dogleg left par 4.")},
		SessionId: aws.String("sess-1"),
		Citations: []types.Citation{{
			RetrievedReferences: []types.RetrievedReference{
				{
					Content: &types.RetrievalResultContent{Text: aws.String(long)},
					Location: &types.RetrievalResultLocation{
						Type:       types.RetrievalResultLocationTypeS3,
						S3Location: &types.RetrievalResultS3Location{Uri: aws.String("s3://course/hole7.md")},
					},
				},
				{Content: &types.RetrievalResultContent{Text: aws.String("short")}},
			},
		}},
	}}
	kb := NewBedrockKnowledge(fake, testKB)

	ans, err := kb.HoleInfo(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, "Hole 7 is a dogleg left par 4.", ans.Response)
	assert.Equal(t, "sess-1", ans.SessionID)
	require.Len(t, ans.Sources, 2)
	assert.Equal(t, "S3", ans.Sources[0].Type)
	assert.Equal(t, "s3://course/hole7.md", ans.Sources[0].S3Location.URI)
	assert.Equal(t, strings.Repeat("a", 200)+"...", ans.Sources[0].Content)
	assert.Equal(t, "short...", ans.Sources[1].Content)

	q := aws.ToString(fake.ragIn.Input.Text)
	assert.True(t, strings.HasPrefix(q, "Tell me about hole 7 at Sunny Hills Golf Club."), q)
	cfg := fake.ragIn.RetrieveAndGenerateConfiguration
	assert.Equal(t, types.RetrieveAndGenerateTypeKnowledgeBase, cfg.Type)
	assert.Equal(t, "KB12345678", aws.ToString(cfg.KnowledgeBaseConfiguration.KnowledgeBaseId))
	assert.Equal(t, testKB.ModelARN, aws.ToString(cfg.KnowledgeBaseConfiguration.ModelArn))
}

func TestHoleInfoError(t *testing.T) {
	fake := &fakeKnowledge{err: &smithy.GenericAPIError{Code: "AccessDeniedException", Message: "not authorized"}}
	kb := NewBedrockKnowledge(fake, testKB)

	_, err := kb.HoleInfo(context.Background(), 3)
	require.Error(t, err)
	var kerr *KnowledgeError
	require.True(t, errors.As(err, &kerr))
	assert.True(t, kerr.IsAccessDenied())
	assert.Equal(t, "Knowledge Base query failed: AccessDeniedException: not authorized", err.Error())

	var nilKB *BedrockKnowledge
	_, err = nilKB.HoleInfo(context.Background(), 3)
	assert.ErrorIs(t, err, ErrNoKnowledgeBase)

	_, err = NewBedrockKnowledge(nil, testKB).HoleInfo(context.Background(), 3)
	assert.ErrorIs(t, err, ErrNoKnowledgeBase)
}

func parResult(hole, par any) types.KnowledgeBaseRetrievalResult {
	md := map[string]document.Interface{}
	if hole != nil {
		md["HoleNumber"] = document.NewLazyDocument(hole)
	}
	if par != nil {
		md["Par"] = document.NewLazyDocument(par)
	}
	return types.KnowledgeBaseRetrievalResult{Metadata: md}
}

func TestCoursePars(t *testing.T) {
	var results []types.KnowledgeBaseRetrievalResult
	for h := 1; h <= 16; h++ {
		results = append(results, parResult(float64(h), 4.0))
	}
	results = append(results,
		parResult("17", "3"),
		parResult(18.0, 5),
		parResult(nil, 4.0),
		parResult("x", 4.0),
		parResult(10.0, nil),
	)
	fake := &fakeKnowledge{retOut: &bedrockagentruntime.RetrieveOutput{RetrievalResults: results}}
	kb := NewBedrockKnowledge(fake, testKB)

	pars, err := kb.CoursePars(context.Background())
	require.NoError(t, err)
	assert.Len(t, pars, 18)
	assert.Equal(t, 3, pars[17])
	assert.Equal(t, 5, pars[18])
	assert.Equal(t, 4, pars[10])

	assert.Equal(t, "KB12345678", aws.ToString(fake.retIn.KnowledgeBaseId))
	assert.Equal(t, "golf course holes par information", aws.ToString(fake.retIn.RetrievalQuery.Text))
	assert.EqualValues(t, 18, aws.ToInt32(fake.retIn.RetrievalConfiguration.VectorSearchConfiguration.NumberOfResults))
}

func TestCourseParsError(t *testing.T) {
	kb := NewBedrockKnowledge(&fakeKnowledge{err: errors.New("boom")}, testKB)
	_, err := kb.CoursePars(context.Background())
	require.Error(t, err)
	assert.Equal(t, "Knowledge Base retrieve failed: boom", err.Error())
}
