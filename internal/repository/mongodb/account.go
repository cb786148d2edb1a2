package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/sakif/whisper-net/internal/apperror"
	"github.com/sakif/whisper-net/internal/model"
)

// Create inserts a new account. The repository assigns the ID and
// bookkeeping timestamps, like the rest of the write operations here.
//
// Username uniqueness rides on the unique index: a losing racer gets a
// duplicate-key error from the insert itself, so a failed create never
// leaves a partial record behind.
func (s *Store) Create(ctx context.Context, account *model.Account) error {
	now := time.Now().UTC()
	account.ID = xid.New().String()
	account.CreatedAt = now
	account.UpdatedAt = now
	if account.Messages == nil {
		account.Messages = []model.Message{}
	}

	ctx, cancel := s.opContext(ctx)
	defer cancel()

	_, err := s.accounts().InsertOne(ctx, account)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return apperror.Conflict(fmt.Sprintf("username %q is already taken", account.Username))
		}
		return fmt.Errorf("mongodb: inserting account %q: %w", account.Username, err)
	}

	return nil
}

func (s *Store) GetByID(ctx context.Context, id string) (*model.Account, error) {
	return s.findOne(ctx, bson.M{"_id": id}, id)
}

func (s *Store) GetByUsername(ctx context.Context, username string) (*model.Account, error) {
	return s.findOne(ctx, bson.M{"username": username}, username)
}

// GetByIdentifier matches the identifier against username OR email, in a
// single query. Email is not unique in this design; FindOne returns an
// arbitrary match in that case, which mirrors the original behaviour.
func (s *Store) GetByIdentifier(ctx context.Context, identifier string) (*model.Account, error) {
	filter := bson.M{"$or": []bson.M{
		{"username": identifier},
		{"email": identifier},
	}}
	return s.findOne(ctx, filter, identifier)
}

func (s *Store) findOne(ctx context.Context, filter bson.M, ref string) (*model.Account, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	var account model.Account
	err := s.accounts().FindOne(ctx, filter).Decode(&account)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperror.NotFound("account", ref)
		}
		return nil, fmt.Errorf("mongodb: finding account %q: %w", ref, err)
	}

	return &account, nil
}

// UpdateVerifyCode stores a newly issued code + expiry in one update.
//
// The filter pins isVerified:false, so issuing against a verified account is
// impossible even if the caller's earlier read raced a concurrent
// verification. Overwriting verifyCode is also what permanently invalidates
// the previous code — there is never more than one live code per account.
func (s *Store) UpdateVerifyCode(ctx context.Context, id, code string, expiry time.Time) error {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	res, err := s.accounts().UpdateOne(ctx,
		bson.M{"_id": id, "isVerified": false},
		bson.M{"$set": bson.M{
			"verifyCode":       code,
			"verifyCodeExpiry": expiry,
			"updatedAt":        time.Now().UTC(),
		}},
	)
	if err != nil {
		return fmt.Errorf("mongodb: updating verify code for %s: %w", id, err)
	}
	if res.MatchedCount == 0 {
		return s.explainUnverifiedMiss(ctx, id)
	}

	return nil
}

// MarkVerified flips isVerified false→true. The isVerified:false filter makes
// the transition happen at most once no matter how many confirms race.
func (s *Store) MarkVerified(ctx context.Context, id string) error {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	res, err := s.accounts().UpdateOne(ctx,
		bson.M{"_id": id, "isVerified": false},
		bson.M{"$set": bson.M{
			"isVerified": true,
			"updatedAt":  time.Now().UTC(),
		}},
	)
	if err != nil {
		return fmt.Errorf("mongodb: marking account %s verified: %w", id, err)
	}
	if res.MatchedCount == 0 {
		return s.explainUnverifiedMiss(ctx, id)
	}

	return nil
}

// explainUnverifiedMiss turns a zero-match on an isVerified:false filter into
// the right domain error: Conflict if the account exists but is verified,
// NotFound otherwise.
func (s *Store) explainUnverifiedMiss(ctx context.Context, id string) error {
	n, err := s.accounts().CountDocuments(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("mongodb: checking account %s: %w", id, err)
	}
	if n > 0 {
		return apperror.Conflict("account is already verified")
	}
	return apperror.NotFound("account", id)
}

// SetAcceptingMessages flips the acceptance flag and returns the updated
// snapshot in the same round trip.
func (s *Store) SetAcceptingMessages(ctx context.Context, id string, accepting bool) (*model.Account, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	var account model.Account
	err := s.accounts().FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{
			"isAcceptingMessages": accepting,
			"updatedAt":           time.Now().UTC(),
		}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&account)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperror.NotFound("account", id)
		}
		return nil, fmt.Errorf("mongodb: setting acceptance for %s: %w", id, err)
	}

	return &account, nil
}

// AppendMessage is THE write the product hangs on: the acceptance check and
// the append are one filtered $push, so the flag is honoured at the exact
// moment of the write and concurrent sends are independent array pushes
// (no read-modify-write of the whole inbox, no lost updates).
func (s *Store) AppendMessage(ctx context.Context, username string, msg *model.Message) error {
	msg.ID = xid.New().String()
	msg.CreatedAt = time.Now().UTC()

	ctx, cancel := s.opContext(ctx)
	defer cancel()

	res, err := s.accounts().UpdateOne(ctx,
		bson.M{"username": username, "isAcceptingMessages": true},
		bson.M{
			"$push": bson.M{"messages": msg},
			"$set":  bson.M{"updatedAt": msg.CreatedAt},
		},
	)
	if err != nil {
		return fmt.Errorf("mongodb: appending message for %q: %w", username, err)
	}
	if res.MatchedCount == 0 {
		// Zero match means no such user OR not accepting — one extra
		// lookup tells the two apart for the caller.
		n, err := s.accounts().CountDocuments(ctx, bson.M{"username": username})
		if err != nil {
			return fmt.Errorf("mongodb: checking recipient %q: %w", username, err)
		}
		if n == 0 {
			return apperror.NotFound("account", username)
		}
		return apperror.Forbidden("recipient is not accepting messages")
	}

	return nil
}

// DeleteMessage pulls one message out of the owner's inbox. ModifiedCount==0
// is reported as NotFound without further digging — whether the message
// never existed or lives in another account's inbox is deliberately
// indistinguishable, so message IDs leak nothing across accounts.
func (s *Store) DeleteMessage(ctx context.Context, accountID, messageID string) error {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	res, err := s.accounts().UpdateOne(ctx,
		bson.M{"_id": accountID},
		bson.M{"$pull": bson.M{"messages": bson.M{"_id": messageID}}},
	)
	if err != nil {
		return fmt.Errorf("mongodb: deleting message %s: %w", messageID, err)
	}
	if res.ModifiedCount == 0 {
		return apperror.NotFound("message", messageID)
	}

	return nil
}

// opContext bounds a single store operation. The request context still wins
// if the client disconnects first.
func (s *Store) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.timeout)
}
