package pubsub

import (
	"context"
	"encoding/json"
	"testing"

	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"cloud.google.com/go/pubsub/v2/pstest"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/JakeFAU/newscrawler/internal/crawler"
)

func TestPublishArticleEvent(t *testing.T) {
	ctx := context.Background()
	srv := pstest.NewServer()
	t.Cleanup(func() { _ = srv.Close() })

	_, err := srv.GServer.CreateTopic(ctx, &pubsubpb.Topic{Name: "projects/test-project/topics/articles"})
	require.NoError(t, err)

	pub, err := New(ctx, Config{ProjectID: "test-project", Topic: "articles"},
		option.WithEndpoint(srv.Addr),
		option.WithoutAuthentication(),
		option.WithGRPCDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pub.Close() })

	event := crawler.ArticleEvent{
		RunID:       "run-1",
		URL:         "https://merolagani.com/NewsDetail.aspx?newsID=114689",
		Domain:      "merolagani.com",
		Fingerprint: "abc",
	}
	id, err := pub.Publish(ctx, event)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	msgs := srv.Messages()
	require.Len(t, msgs, 1)
	require.Equal(t, "merolagani.com", msgs[0].Attributes["domain"])
	require.Equal(t, "article_stored", msgs[0].Attributes["event"])

	var got crawler.ArticleEvent
	require.NoError(t, json.Unmarshal(msgs[0].Data, &got))
	require.Equal(t, event.URL, got.URL)
}

func TestNewRequiresTopic(t *testing.T) {
	_, err := New(context.Background(), Config{ProjectID: "p"})
	require.Error(t, err)
}

func TestPublishUnconfigured(t *testing.T) {
	var p *Publisher
	_, err := p.Publish(context.Background(), "x")
	require.Error(t, err)
	require.NoError(t, p.Close())
}

func TestAttributes(t *testing.T) {
	require.Nil(t, attributes("plain"))
	attrs := attributes(crawler.ArticleEvent{Domain: "d", Fingerprint: "f", RunID: "r"})
	require.Equal(t, map[string]string{"event": "article_stored", "domain": "d", "fingerprint": "f", "run_id": "r"}, attrs)
}
