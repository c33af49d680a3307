package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/clinicblog/internal/db"
	"github.com/clinicblog/internal/store"
)

const (
	postsCollection    = "posts"
	commentsCollection = "comments"
)

// Store keeps posts and comments in MongoDB collections.
type Store struct {
	client   *mongo.Client
	posts    *mongo.Collection
	comments *mongo.Collection
	hub      *store.CommentHub
	now      func() time.Time
}

var _ store.Store = (*Store)(nil)

// Connect dials uri and pings the server before returning.
func Connect(ctx context.Context, uri, database string) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	return New(client, database), nil
}

func New(client *mongo.Client, database string) *Store {
	dbh := client.Database(database)
	return &Store{
		client:   client,
		posts:    dbh.Collection(postsCollection),
		comments: dbh.Collection(commentsCollection),
		hub:      store.NewCommentHub(),
		now:      func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) },
	}
}

// EnsureIndexes creates the indexes used by the list queries.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.posts.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "author_id", Value: 1}}},
		{Keys: bson.D{{Key: "date", Value: -1}}},
	})
	if err != nil {
		return err
	}
	_, err = s.comments.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "post_id", Value: 1}, {Key: "created_at", Value: 1}},
	})
	return err
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func translate(err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return store.ErrNotFound
	}
	return err
}

func (s *Store) GetPost(ctx context.Context, id string) (db.Post, error) {
	var post db.Post
	if err := s.posts.FindOne(ctx, bson.M{"_id": id}).Decode(&post); err != nil {
		return db.Post{}, translate(err)
	}
	return post, nil
}

func (s *Store) ListPosts(ctx context.Context, query store.PostQuery) ([]db.Post, error) {
	filter := bson.M{}
	if query.AuthorID != "" {
		filter["author_id"] = query.AuthorID
	}
	switch query.Status {
	case "":
	case db.StatusDraft:
		filter["status"] = db.StatusDraft
	default:
		filter["status"] = bson.M{"$ne": db.StatusDraft}
	}

	var (
		cursor *mongo.Cursor
		err    error
	)
	if query.OrderByDate {
		cursor, err = s.posts.Aggregate(ctx, recencyPipeline(filter, query.Limit))
	} else {
		opts := options.Find()
		if query.Limit > 0 {
			opts.SetLimit(int64(query.Limit))
		}
		cursor, err = s.posts.Find(ctx, filter, opts)
	}
	if err != nil {
		return nil, err
	}
	posts := []db.Post{}
	if err := cursor.All(ctx, &posts); err != nil {
		return nil, err
	}
	return posts, nil
}

// recencyPipeline sorts by the first present of published_at, date,
// updated_at and created_at, newest first.
func recencyPipeline(filter bson.M, limit int) mongo.Pipeline {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: filter}},
		{{Key: "$addFields", Value: bson.M{
			"_recency": bson.M{"$ifNull": bson.A{"$published_at", "$date", "$updated_at", "$created_at"}},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "_recency", Value: -1}, {Key: "_id", Value: 1}}}},
	}
	if limit > 0 {
		pipeline = append(pipeline, bson.D{{Key: "$limit", Value: int64(limit)}})
	}
	return append(pipeline, bson.D{{Key: "$project", Value: bson.M{"_recency": 0}}})
}

func (s *Store) CreatePost(ctx context.Context, fields store.Fields) (string, error) {
	post := db.Post{ID: db.NewID()}
	if err := store.ApplyFields(&post, fields, s.now()); err != nil {
		return "", err
	}
	if _, err := s.posts.InsertOne(ctx, post); err != nil {
		return "", err
	}
	return post.ID, nil
}

func (s *Store) UpdatePost(ctx context.Context, id string, fields store.Fields) error {
	post, err := s.GetPost(ctx, id)
	if err != nil {
		return err
	}
	if err := store.ApplyFields(&post, fields, s.now()); err != nil {
		return err
	}
	res, err := s.posts.ReplaceOne(ctx, bson.M{"_id": id}, post)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) DeletePost(ctx context.Context, id string) error {
	_, err := s.posts.DeleteOne(ctx, bson.M{"_id": id})
	return err
}

func (s *Store) ListCommentIDs(ctx context.Context, postID string) ([]string, error) {
	opts := options.Find().SetProjection(bson.M{"_id": 1})
	cursor, err := s.comments.Find(ctx, bson.M{"post_id": postID}, opts)
	if err != nil {
		return nil, err
	}
	var rows []struct {
		ID string `bson:"_id"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}
	return ids, nil
}

// DeleteComments issues one DeleteMany, which MongoDB applies as a single
// command.
func (s *Store) DeleteComments(ctx context.Context, postID string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if len(ids) > store.MaxBatchSize {
		return fmt.Errorf("%w: %d", store.ErrBatchTooLarge, len(ids))
	}
	_, err := s.comments.DeleteMany(ctx, bson.M{"post_id": postID, "_id": bson.M{"$in": ids}})
	return err
}

func (s *Store) AddComment(ctx context.Context, comment db.Comment) (db.Comment, error) {
	if comment.ID == "" {
		comment.ID = db.NewID()
	}
	if comment.CreatedAt == nil {
		now := s.now()
		comment.CreatedAt = &now
	}
	if _, err := s.comments.InsertOne(ctx, comment); err != nil {
		return db.Comment{}, err
	}

	if comments, err := s.ListComments(ctx, comment.PostID); err == nil {
		s.hub.Publish(comment.PostID, comments)
	}
	return comment, nil
}

func (s *Store) GetComment(ctx context.Context, id string) (db.Comment, error) {
	var comment db.Comment
	if err := s.comments.FindOne(ctx, bson.M{"_id": id}).Decode(&comment); err != nil {
		return db.Comment{}, translate(err)
	}
	return comment, nil
}

func (s *Store) ListComments(ctx context.Context, postID string) ([]db.Comment, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	cursor, err := s.comments.Find(ctx, bson.M{"post_id": postID}, opts)
	if err != nil {
		return nil, err
	}
	comments := []db.Comment{}
	if err := cursor.All(ctx, &comments); err != nil {
		return nil, err
	}
	return comments, nil
}

func (s *Store) WatchComments(ctx context.Context, postID string) (<-chan []db.Comment, error) {
	return s.hub.Watch(ctx, postID, func(ctx context.Context) ([]db.Comment, error) {
		return s.ListComments(ctx, postID)
	})
}
