package mongo

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"semsearch/internal/domain"
)

func TestBuildPipeline(t *testing.T) {
	p := buildPipeline("vector_index", []float32{0.1, 0.2}, 150, 3)
	require.Len(t, p, 2)

	search := p[0][0]
	assert.Equal(t, "$vectorSearch", search.Key)
	assert.Equal(t, bson.D{
		{Key: "index", Value: "vector_index"},
		{Key: "queryVector", Value: []float32{0.1, 0.2}},
		{Key: "path", Value: "embedding"},
		{Key: "numCandidates", Value: 150},
		{Key: "limit", Value: 3},
	}, search.Value)

	project := p[1][0].Value.(bson.D)
	assert.Contains(t, project, bson.E{Key: "journal-ref", Value: 1})
	assert.Contains(t, project, bson.E{Key: "_id", Value: 0})
	assert.Contains(t, project, bson.E{Key: "score", Value: bson.D{{Key: "$meta", Value: "vectorSearchScore"}}})
}

func TestBuildPipeline_CandidatesNeverBelowLimit(t *testing.T) {
	p := buildPipeline("idx", []float32{1}, 1, 5)
	assert.Contains(t, p[0][0].Value.(bson.D), bson.E{Key: "numCandidates", Value: 5})
}

func TestToBSON_OmitsAbsentFields(t *testing.T) {
	d := toBSON(domain.Record{
		Document: domain.Document{Title: domain.StringPtr("T"), JournalRef: domain.StringPtr("J")},
		Vector:   []float32{1, 2},
	})
	assert.Equal(t, bson.D{
		{Key: "title", Value: "T"},
		{Key: "journal-ref", Value: "J"},
		{Key: "embedding", Value: []float32{1, 2}},
	}, d)
}

func TestStore(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("search maps projected fields", func(mt *mtest.T) {
		ns := mt.DB.Name() + "." + mt.Coll.Name()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch,
			bson.D{
				{Key: "title", Value: "Attention Is All You Need"},
				{Key: "authors", Value: "Vaswani et al."},
				{Key: "abstract", Value: "Transformers."},
				{Key: "journal-ref", Value: "NeurIPS 2017"},
				{Key: "score", Value: 0.93},
			},
			bson.D{
				{Key: "title", Value: "Preprint"},
				{Key: "score", Value: 0.71},
			},
		))

		s := newStore(mt.Client, mt.Coll, "")
		docs, err := s.Search(context.Background(), []float32{0.1}, 150, 3)
		require.NoError(mt, err)
		require.Len(mt, docs, 2)
		assert.Equal(mt, "NeurIPS 2017", *docs[0].JournalRef)
		assert.InDelta(mt, 0.93, docs[0].Score, 1e-9)
		assert.Equal(mt, "Preprint", *docs[1].Title)
		assert.Nil(mt, docs[1].Authors)
		assert.Nil(mt, docs[1].JournalRef)
	})

	mt.Run("search surfaces command errors", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{
			Code:    8,
			Message: "PlanExecutor error: index not found",
		}))
		s := newStore(mt.Client, mt.Coll, "")
		_, err := s.Search(context.Background(), []float32{0.1}, 150, 3)
		require.Error(mt, err)
		assert.Contains(mt, err.Error(), "index not found")
	})

	mt.Run("replace deletes then inserts", func(mt *mtest.T) {
		mt.AddMockResponses(
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 5}),
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 2}),
		)
		s := newStore(mt.Client, mt.Coll, "")
		err := s.Replace(context.Background(), []domain.Record{
			{Document: domain.Document{Title: domain.StringPtr("A")}, Vector: []float32{1}},
			{Document: domain.Document{Title: domain.StringPtr("B")}, Vector: []float32{2}},
		})
		require.NoError(mt, err)
	})

	mt.Run("replace rejects records without embeddings", func(mt *mtest.T) {
		s := newStore(mt.Client, mt.Coll, "")
		assert.Error(mt, s.Replace(context.Background(), nil))
		assert.Error(mt, s.Replace(context.Background(), []domain.Record{{}}))
	})

	mt.Run("ping", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse())
		s := newStore(mt.Client, mt.Coll, "")
		assert.NoError(mt, s.Ping(context.Background()))
	})
}
