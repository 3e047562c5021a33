package forum

import (
	"context"

	"campus-hub/internal/retry"
	"campus-hub/internal/vote"
)

// KarmaService sums the vote scores of a user's posts and comments. It is
// computed on read from the vote ledger, never stored.
type KarmaService struct {
	posts    PostStore
	comments CommentStore
	voter    Voter
	retry    retry.Policy
}

func NewKarmaService(posts PostStore, comments CommentStore, voter Voter, policy retry.Policy) *KarmaService {
	return &KarmaService{posts: posts, comments: comments, voter: voter, retry: policy}
}

func (s *KarmaService) ForUser(ctx context.Context, userID int64) (Karma, error) {
	const op = "karma.get"
	postIDs, err := retry.Value(ctx, s.retry, op, func(ctx context.Context) ([]int64, error) {
		return s.posts.IDsByAuthor(ctx, userID)
	})
	if err != nil {
		return Karma{}, err
	}
	commentIDs, err := retry.Value(ctx, s.retry, op, func(ctx context.Context) ([]int64, error) {
		return s.comments.IDsByAuthor(ctx, userID)
	})
	if err != nil {
		return Karma{}, err
	}

	var k Karma
	if k.Posts, err = s.sum(ctx, vote.KindPost, postIDs); err != nil {
		return Karma{}, err
	}
	if k.Comments, err = s.sum(ctx, vote.KindComment, commentIDs); err != nil {
		return Karma{}, err
	}
	k.Total = k.Posts + k.Comments
	return k, nil
}

func (s *KarmaService) sum(ctx context.Context, kind vote.Kind, ids []int64) (int, error) {
	tallies, err := s.voter.Tallies(ctx, kind, ids)
	if err != nil {
		return 0, err
	}
	total := 0
	for _, t := range tallies {
		total += t.Score
	}
	return total, nil
}
