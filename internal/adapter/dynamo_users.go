package adapter

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/a2workspace/jwtguard/internal/domain"
	"github.com/a2workspace/jwtguard/internal/dynamo"
	"github.com/a2workspace/jwtguard/internal/guard"
)

// dummyHash is a well-known bcrypt hash used purely to equalize timing:
// credential checks for unknown usernames compare against it so the lookup
// path does comparable work whether or not the user exists. The comparison
// result is discarded, so the preimage being public does not matter.
const dummyHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

// Compile-time check: DynamoUserStore satisfies guard.UserStore.
var _ guard.UserStore = (*DynamoUserStore)(nil)

// userDynamoDB is a narrow, consumer-defined interface for DynamoDB
// operations required by the user store. The *dynamodb.Client satisfies it.
type userDynamoDB interface {
	GetItem(ctx context.Context, params *dynamo.GetItemInput, optFns ...func(*dynamo.Options)) (*dynamo.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamo.PutItemInput, optFns ...func(*dynamo.Options)) (*dynamo.PutItemOutput, error)
	Query(ctx context.Context, params *dynamo.QueryInput, optFns ...func(*dynamo.Options)) (*dynamo.QueryOutput, error)
}

// userItem is the DynamoDB item shape for the users table.
type userItem struct {
	UserID       string         `dynamodbav:"user_id"`
	Username     string         `dynamodbav:"username"`
	PasswordHash string         `dynamodbav:"password_hash"`
	CustomClaims map[string]any `dynamodbav:"custom_claims,omitempty"`
	CreatedAt    string         `dynamodbav:"created_at"`
	UpdatedAt    string         `dynamodbav:"updated_at"`
}

// User is the adapter-level representation of an account. It is the subject
// tokens are issued for.
type User struct {
	UserID   string         `json:"user_id"`
	Username string         `json:"username"`
	Claims   map[string]any `json:"claims,omitempty"`
}

// Identifier returns the stable subject identifier embedded in tokens.
func (u *User) Identifier() string { return u.UserID }

// CustomClaims returns the claims to flatten into issued tokens. The
// username always rides along; the stored claim map cannot override it.
func (u *User) CustomClaims() map[string]any {
	claims := make(map[string]any, len(u.Claims)+1)
	for k, v := range u.Claims {
		claims[k] = v
	}
	claims["username"] = u.Username
	return claims
}

// DynamoUserStore persists accounts in DynamoDB. The table is keyed on
// user_id with a username-index GSI projecting user_id for login lookups.
type DynamoUserStore struct {
	db        userDynamoDB
	tableName string
	indexName string
	clock     domain.Clock
}

// NewDynamoUserStore creates a DynamoUserStore backed by the given DynamoDB
// client.
func NewDynamoUserStore(db userDynamoDB, tableName string, clock domain.Clock) *DynamoUserStore {
	return &DynamoUserStore{
		db:        db,
		tableName: tableName,
		indexName: "username-index",
		clock:     clock,
	}
}

// FindByIdentifier retrieves an account by user ID using a strongly
// consistent read. Returns domain.ErrSubjectNotFound when no account exists.
func (s *DynamoUserStore) FindByIdentifier(ctx context.Context, identifier string) (domain.Subject, error) {
	item, err := s.getItem(ctx, identifier)
	if err != nil {
		return nil, err
	}
	return &User{
		UserID:   item.UserID,
		Username: item.Username,
		Claims:   item.CustomClaims,
	}, nil
}

// VerifyCredentials checks a username/password pair against the stored
// bcrypt hash. Unknown usernames and wrong passwords both come back as
// domain.ErrInvalidCredentials so callers cannot tell which field was wrong.
func (s *DynamoUserStore) VerifyCredentials(ctx context.Context, username, password string) (domain.Subject, error) {
	item, err := s.findByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, domain.ErrSubjectNotFound) {
			_ = bcrypt.CompareHashAndPassword([]byte(dummyHash), []byte(password))
			return nil, domain.ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(item.PasswordHash), []byte(password)); err != nil {
		return nil, domain.ErrInvalidCredentials
	}

	return &User{
		UserID:   item.UserID,
		Username: item.Username,
		Claims:   item.CustomClaims,
	}, nil
}

// CreateUser provisions a new account, hashing the password with bcrypt.
// Returns domain.ErrAlreadyExists when the user ID is taken.
func (s *DynamoUserStore) CreateUser(ctx context.Context, user *User, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("user store: hash password: %w", err)
	}

	now := s.clock.Now().UTC().Format("2006-01-02T15:04:05Z")
	av, err := dynamo.MarshalMap(userItem{
		UserID:       user.UserID,
		Username:     user.Username,
		PasswordHash: string(hash),
		CustomClaims: user.Claims,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		return fmt.Errorf("user store: marshal user: %w", err)
	}

	expr, err := dynamo.NewExpressionBuilder().
		WithCondition(dynamo.ExprAttributeNotExists(dynamo.ExprName("user_id"))).
		Build()
	if err != nil {
		return fmt.Errorf("user store: build condition: %w", err)
	}

	_, err = s.db.PutItem(ctx, &dynamo.PutItemInput{
		TableName:                 &s.tableName,
		Item:                      av,
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		if dynamo.IsConditionalCheckFailed(err) {
			return fmt.Errorf("user store: create %q: %w", user.UserID, domain.ErrAlreadyExists)
		}
		return fmt.Errorf("user store: create %q: %w: %w", user.UserID, domain.ErrStoreUnavailable, err)
	}

	return nil
}

func (s *DynamoUserStore) getItem(ctx context.Context, userID string) (*userItem, error) {
	out, err := s.db.GetItem(ctx, &dynamo.GetItemInput{
		TableName: &s.tableName,
		Key: map[string]dynamo.AttributeValue{
			"user_id": &dynamo.AttributeValueMemberS{Value: userID},
		},
		ConsistentRead: dynamo.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("user store: get by id: %w: %w", domain.ErrStoreUnavailable, err)
	}

	if out.Item == nil {
		return nil, fmt.Errorf("user store: get by id %q: %w", userID, domain.ErrSubjectNotFound)
	}

	var item userItem
	if err := dynamo.UnmarshalMap(out.Item, &item); err != nil {
		return nil, fmt.Errorf("user store: unmarshal user: %w", err)
	}

	return &item, nil
}

// findByUsername resolves a username via the username-index GSI, then
// fetches the full record with a consistent GetItem read. Context is checked
// between the two steps to honour cancellation.
func (s *DynamoUserStore) findByUsername(ctx context.Context, username string) (*userItem, error) {
	expr, err := dynamo.NewExpressionBuilder().
		WithKeyCondition(dynamo.ExprKey("username").Equal(dynamo.ExprValue(username))).
		Build()
	if err != nil {
		return nil, fmt.Errorf("user store: build key condition: %w", err)
	}

	queryOut, err := s.db.Query(ctx, &dynamo.QueryInput{
		TableName:                 &s.tableName,
		IndexName:                 &s.indexName,
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		return nil, fmt.Errorf("user store: find by username query: %w: %w", domain.ErrStoreUnavailable, err)
	}

	if len(queryOut.Items) == 0 {
		return nil, fmt.Errorf("user store: find by username: %w", domain.ErrSubjectNotFound)
	}

	var projected struct {
		UserID string `dynamodbav:"user_id"`
	}
	if err := dynamo.UnmarshalMap(queryOut.Items[0], &projected); err != nil {
		return nil, fmt.Errorf("user store: unmarshal gsi projection: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("user store: find by username: %w", err)
	}

	return s.getItem(ctx, projected.UserID)
}
