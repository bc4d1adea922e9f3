package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/clipper/clipper-api/internal/core/domain"
)

// ownerFields maps each resource type to the collection holding it and the
// field naming its owner. The documents themselves are written by the
// catalogue services; this package only reads them.
var ownerFields = map[string]struct {
	collection string
	field      string
}{
	domain.ResourceChannel: {collection: "channels", field: "owner_id"},
	domain.ResourceVideo:   {collection: "videos", field: "uploaded_by"},
	domain.ResourceClip:    {collection: "clips", field: "user_id"},
}

// OwnershipResolver answers ownership questions for one resource type by
// looking for a document with the given _id and owner.
type OwnershipResolver struct {
	col   *mongo.Collection
	field string
}

// NewOwnershipResolver returns the resolver for resourceType.
func NewOwnershipResolver(db *mongo.Database, resourceType string) (*OwnershipResolver, error) {
	m, ok := ownerFields[resourceType]
	if !ok {
		return nil, fmt.Errorf("no ownership mapping for resource type %q", resourceType)
	}
	return &OwnershipResolver{col: db.Collection(m.collection), field: m.field}, nil
}

// ResolvedResourceTypes lists the resource types NewOwnershipResolver accepts.
func ResolvedResourceTypes() []string {
	return []string{domain.ResourceChannel, domain.ResourceVideo, domain.ResourceClip}
}

func (r *OwnershipResolver) IsOwner(ctx context.Context, userID, resourceID int64) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	n, err := r.col.CountDocuments(ctx,
		bson.M{"_id": resourceID, r.field: userID},
		options.Count().SetLimit(1),
	)
	if err != nil {
		return false, fmt.Errorf("ownership lookup in %s: %w", r.col.Name(), err)
	}
	return n > 0, nil
}
