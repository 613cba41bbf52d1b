package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	domain "github.com/shelfwise/acquisitions/internal/domain"
	pfirestore "github.com/shelfwise/acquisitions/internal/platform/firestore"
	"github.com/shelfwise/acquisitions/internal/repositories"
)

const (
	instancesCollection = "instances"
	holdingsCollection  = "holdings"
	itemsCollection     = "items"
)

// CatalogRepository persists bibliographic instances, holdings, items, and
// reference tables in Firestore.
type CatalogRepository struct {
	provider  *pfirestore.Provider
	instances *pfirestore.BaseRepository[instanceDocument]
	holdings  *pfirestore.BaseRepository[holdingDocument]
	items     *pfirestore.BaseRepository[itemDocument]
}

// NewCatalogRepository constructs a Firestore-backed catalog repository.
func NewCatalogRepository(provider *pfirestore.Provider) (*CatalogRepository, error) {
	if provider == nil {
		return nil, errors.New("catalog repository: firestore provider is required")
	}
	return &CatalogRepository{
		provider:  provider,
		instances: pfirestore.NewBaseRepository[instanceDocument](provider, instancesCollection, nil, nil),
		holdings:  pfirestore.NewBaseRepository[holdingDocument](provider, holdingsCollection, nil, nil),
		items:     pfirestore.NewBaseRepository[itemDocument](provider, itemsCollection, nil, nil),
	}, nil
}

// FindInstanceByProductIDs returns the first instance carrying any of the
// given product identifiers. Instances index their identifiers as
// "typeName:value" keys so a single array-contains-any query covers the
// whole identifier set.
func (r *CatalogRepository) FindInstanceByProductIDs(ctx context.Context, productIDs []domain.ProductIdentifier) (domain.Instance, error) {
	if r == nil || r.instances == nil {
		return domain.Instance{}, errors.New("catalog repository not initialised")
	}

	keys := identifierKeys(productIDs)
	if len(keys) == 0 {
		return domain.Instance{}, notFoundError("instances.find_by_product_ids", "no product identifiers given")
	}

	for start := 0; start < len(keys); start += maxInClauseValues {
		end := min(start+maxInClauseValues, len(keys))
		chunk := keys[start:end]

		docs, err := r.instances.Query(ctx, func(q firestore.Query) firestore.Query {
			return q.Where("identifierKeys", "array-contains-any", chunk).Limit(1)
		})
		if err != nil {
			return domain.Instance{}, err
		}
		if len(docs) > 0 {
			return decodeInstanceDocument(docs[0].ID, docs[0].Data), nil
		}
	}
	return domain.Instance{}, notFoundError("instances.find_by_product_ids", "no instance matches the product identifiers")
}

// CreateInstance stores a new catalog instance. The ID must be unique.
func (r *CatalogRepository) CreateInstance(ctx context.Context, instance domain.Instance) error {
	if r == nil || r.instances == nil {
		return errors.New("catalog repository not initialised")
	}
	instanceID := strings.TrimSpace(instance.ID)
	if instanceID == "" {
		return errors.New("catalog repository: instance id is required")
	}
	if _, err := r.instances.Create(ctx, instanceID, encodeInstanceDocument(instance)); err != nil {
		return err
	}
	return nil
}

// FindHolding returns the holding for the (instance, location) pair.
func (r *CatalogRepository) FindHolding(ctx context.Context, query repositories.HoldingQuery) (domain.Holding, error) {
	if r == nil || r.holdings == nil {
		return domain.Holding{}, errors.New("catalog repository not initialised")
	}
	instanceID := strings.TrimSpace(query.InstanceID)
	locationID := strings.TrimSpace(query.LocationID)
	if instanceID == "" || locationID == "" {
		return domain.Holding{}, errors.New("catalog repository: instance id and location id are required")
	}

	docs, err := r.holdings.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.
			Where("instanceId", "==", instanceID).
			Where("locationId", "==", locationID).
			Limit(1)
	})
	if err != nil {
		return domain.Holding{}, err
	}
	if len(docs) == 0 {
		return domain.Holding{}, notFoundError("holdings.find", fmt.Sprintf("no holding for instance %s at location %s", instanceID, locationID))
	}
	doc := docs[0]
	return domain.Holding{
		ID:         doc.ID,
		InstanceID: strings.TrimSpace(doc.Data.InstanceID),
		LocationID: strings.TrimSpace(doc.Data.LocationID),
	}, nil
}

// CreateHolding stores a new holding record. The ID must be unique.
func (r *CatalogRepository) CreateHolding(ctx context.Context, holding domain.Holding) error {
	if r == nil || r.holdings == nil {
		return errors.New("catalog repository not initialised")
	}
	holdingID := strings.TrimSpace(holding.ID)
	if holdingID == "" {
		return errors.New("catalog repository: holding id is required")
	}
	doc := holdingDocument{
		InstanceID: strings.TrimSpace(holding.InstanceID),
		LocationID: strings.TrimSpace(holding.LocationID),
	}
	if _, err := r.holdings.Create(ctx, holdingID, doc); err != nil {
		return err
	}
	return nil
}

// FindItems returns the items belonging to the order line within the holding.
func (r *CatalogRepository) FindItems(ctx context.Context, query repositories.ItemQuery) ([]domain.Item, error) {
	if r == nil || r.items == nil {
		return nil, errors.New("catalog repository not initialised")
	}
	orderLineID := strings.TrimSpace(query.OrderLineID)
	holdingID := strings.TrimSpace(query.HoldingID)
	if orderLineID == "" || holdingID == "" {
		return nil, errors.New("catalog repository: order line id and holding id are required")
	}

	docs, err := r.items.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.
			Where("orderLineId", "==", orderLineID).
			Where("holdingId", "==", holdingID)
	})
	if err != nil {
		return nil, err
	}

	items := make([]domain.Item, 0, len(docs))
	for _, doc := range docs {
		items = append(items, decodeItemDocument(doc.ID, doc.Data))
	}
	return items, nil
}

// FindItemsByIDs fetches items matching the ID set. Unknown IDs are omitted.
func (r *CatalogRepository) FindItemsByIDs(ctx context.Context, itemIDs []string) ([]domain.Item, error) {
	if r == nil || r.items == nil {
		return nil, errors.New("catalog repository not initialised")
	}

	ids := uniqueNonEmpty(itemIDs)
	if len(ids) == 0 {
		return nil, nil
	}

	var items []domain.Item
	for start := 0; start < len(ids); start += maxInClauseValues {
		end := min(start+maxInClauseValues, len(ids))
		chunk := ids[start:end]

		docs, err := r.items.Query(ctx, func(q firestore.Query) firestore.Query {
			return q.Where(firestore.DocumentID, "in", chunk)
		})
		if err != nil {
			return nil, err
		}
		for _, doc := range docs {
			items = append(items, decodeItemDocument(doc.ID, doc.Data))
		}
	}
	return items, nil
}

// CreateItem stores a new item record. The ID must be unique.
func (r *CatalogRepository) CreateItem(ctx context.Context, item domain.Item) error {
	if r == nil || r.items == nil {
		return errors.New("catalog repository not initialised")
	}
	itemID := strings.TrimSpace(item.ID)
	if itemID == "" {
		return errors.New("catalog repository: item id is required")
	}
	if _, err := r.items.Create(ctx, itemID, encodeItemDocument(item)); err != nil {
		return err
	}
	return nil
}

// UpdateItem replaces the persisted item state with the provided snapshot.
func (r *CatalogRepository) UpdateItem(ctx context.Context, item domain.Item) error {
	if r == nil || r.items == nil {
		return errors.New("catalog repository not initialised")
	}
	itemID := strings.TrimSpace(item.ID)
	if itemID == "" {
		return errors.New("catalog repository: item id is required")
	}
	if _, err := r.items.Set(ctx, itemID, encodeItemDocument(item)); err != nil {
		return err
	}
	return nil
}

// LookupReferenceID resolves a reference-table entry by name and returns its
// document ID.
func (r *CatalogRepository) LookupReferenceID(ctx context.Context, kind repositories.ReferenceKind, name string) (string, error) {
	if r == nil || r.provider == nil {
		return "", errors.New("catalog repository not initialised")
	}
	collection := strings.TrimSpace(string(kind))
	name = strings.TrimSpace(name)
	if collection == "" || name == "" {
		return "", errors.New("catalog repository: reference kind and name are required")
	}

	client, err := r.provider.Client(ctx)
	if err != nil {
		return "", err
	}

	docs, err := client.Collection(collection).
		Where("name", "==", name).
		Limit(1).
		Documents(ctx).
		GetAll()
	if err != nil {
		return "", pfirestore.WrapError(collection+".lookup", err)
	}
	if len(docs) == 0 {
		return "", notFoundError(collection+".lookup", fmt.Sprintf("no %s entry named %q", collection, name))
	}
	return docs[0].Ref.ID, nil
}

type instanceDocument struct {
	Title           string                   `firestore:"title"`
	Editions        []string                 `firestore:"editions,omitempty"`
	Publisher       string                   `firestore:"publisher,omitempty"`
	PublicationDate string                   `firestore:"publicationDate,omitempty"`
	InstanceTypeID  string                   `firestore:"instanceTypeId"`
	StatusID        string                   `firestore:"statusId"`
	Contributors    []instanceContributorDoc `firestore:"contributors,omitempty"`
	Identifiers     []instanceIdentifierDoc  `firestore:"identifiers,omitempty"`
	IdentifierKeys  []string                 `firestore:"identifierKeys,omitempty"`
	Source          string                   `firestore:"source"`
}

type instanceContributorDoc struct {
	Name                  string `firestore:"name"`
	ContributorNameTypeID string `firestore:"contributorNameTypeId"`
}

type instanceIdentifierDoc struct {
	IdentifierTypeID string `firestore:"identifierTypeId"`
	Value            string `firestore:"value"`
	TypeName         string `firestore:"typeName,omitempty"`
}

type holdingDocument struct {
	InstanceID string `firestore:"instanceId"`
	LocationID string `firestore:"locationId"`
}

type itemDocument struct {
	HoldingID      string `firestore:"holdingId"`
	OrderLineID    string `firestore:"orderLineId"`
	MaterialTypeID string `firestore:"materialTypeId"`
	LoanTypeID     string `firestore:"permanentLoanTypeId"`
	Barcode        string `firestore:"barcode,omitempty"`
	Status         string `firestore:"status"`
}

func encodeInstanceDocument(instance domain.Instance) instanceDocument {
	contributors := make([]instanceContributorDoc, 0, len(instance.Contributors))
	for _, c := range instance.Contributors {
		contributors = append(contributors, instanceContributorDoc{
			Name:                  strings.TrimSpace(c.Name),
			ContributorNameTypeID: strings.TrimSpace(c.ContributorNameTypeID),
		})
	}
	identifiers := make([]instanceIdentifierDoc, 0, len(instance.Identifiers))
	for _, ident := range instance.Identifiers {
		identifiers = append(identifiers, instanceIdentifierDoc{
			IdentifierTypeID: strings.TrimSpace(ident.IdentifierTypeID),
			Value:            strings.TrimSpace(ident.Value),
			TypeName:         strings.TrimSpace(ident.TypeName),
		})
	}
	return instanceDocument{
		Title:           strings.TrimSpace(instance.Title),
		Editions:        instance.Editions,
		Publisher:       strings.TrimSpace(instance.Publisher),
		PublicationDate: strings.TrimSpace(instance.PublicationDate),
		InstanceTypeID:  strings.TrimSpace(instance.InstanceTypeID),
		StatusID:        strings.TrimSpace(instance.StatusID),
		Contributors:    contributors,
		Identifiers:     identifiers,
		IdentifierKeys:  identifierKeysFromTyped(instance.Identifiers),
		Source:          strings.TrimSpace(instance.Source),
	}
}

func decodeInstanceDocument(id string, doc instanceDocument) domain.Instance {
	contributors := make([]domain.InstanceContributor, 0, len(doc.Contributors))
	for _, c := range doc.Contributors {
		contributors = append(contributors, domain.InstanceContributor{
			Name:                  strings.TrimSpace(c.Name),
			ContributorNameTypeID: strings.TrimSpace(c.ContributorNameTypeID),
		})
	}
	identifiers := make([]domain.InstanceIdentifier, 0, len(doc.Identifiers))
	for _, ident := range doc.Identifiers {
		identifiers = append(identifiers, domain.InstanceIdentifier{
			IdentifierTypeID: strings.TrimSpace(ident.IdentifierTypeID),
			TypeName:         strings.TrimSpace(ident.TypeName),
			Value:            strings.TrimSpace(ident.Value),
		})
	}
	return domain.Instance{
		ID:              strings.TrimSpace(id),
		Title:           strings.TrimSpace(doc.Title),
		Editions:        doc.Editions,
		Publisher:       strings.TrimSpace(doc.Publisher),
		PublicationDate: strings.TrimSpace(doc.PublicationDate),
		InstanceTypeID:  strings.TrimSpace(doc.InstanceTypeID),
		StatusID:        strings.TrimSpace(doc.StatusID),
		Contributors:    contributors,
		Identifiers:     identifiers,
		Source:          strings.TrimSpace(doc.Source),
	}
}

func encodeItemDocument(item domain.Item) itemDocument {
	return itemDocument{
		HoldingID:      strings.TrimSpace(item.HoldingID),
		OrderLineID:    strings.TrimSpace(item.OrderLineID),
		MaterialTypeID: strings.TrimSpace(item.MaterialTypeID),
		LoanTypeID:     strings.TrimSpace(item.LoanTypeID),
		Barcode:        strings.TrimSpace(item.Barcode),
		Status:         strings.TrimSpace(item.Status),
	}
}

func decodeItemDocument(id string, doc itemDocument) domain.Item {
	return domain.Item{
		ID:             strings.TrimSpace(id),
		HoldingID:      strings.TrimSpace(doc.HoldingID),
		OrderLineID:    strings.TrimSpace(doc.OrderLineID),
		MaterialTypeID: strings.TrimSpace(doc.MaterialTypeID),
		LoanTypeID:     strings.TrimSpace(doc.LoanTypeID),
		Barcode:        strings.TrimSpace(doc.Barcode),
		Status:         strings.TrimSpace(doc.Status),
	}
}

func identifierKeys(productIDs []domain.ProductIdentifier) []string {
	keys := make([]string, 0, len(productIDs))
	seen := make(map[string]struct{}, len(productIDs))
	for _, pid := range productIDs {
		value := strings.TrimSpace(pid.Value)
		typeName := strings.TrimSpace(pid.TypeName)
		if value == "" || typeName == "" {
			continue
		}
		key := typeName + ":" + value
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		keys = append(keys, key)
	}
	return keys
}

func identifierKeysFromTyped(identifiers []domain.InstanceIdentifier) []string {
	keys := make([]string, 0, len(identifiers))
	seen := make(map[string]struct{}, len(identifiers))
	for _, ident := range identifiers {
		value := strings.TrimSpace(ident.Value)
		typeName := strings.TrimSpace(ident.TypeName)
		if value == "" || typeName == "" {
			continue
		}
		key := typeName + ":" + value
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		keys = append(keys, key)
	}
	return keys
}

func notFoundError(op string, message string) error {
	return pfirestore.WrapError(op, status.Error(codes.NotFound, message))
}
