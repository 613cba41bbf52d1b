package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/shelfwise/acquisitions/internal/domain"
	"github.com/shelfwise/acquisitions/internal/repositories"
)

// Fallback reference entries used when instances and items are created from
// order line details alone.
const (
	unspecifiedInstanceTypeName = "zzz"
	temporaryInstanceStatusName = "temp"
	personalContributorNameType = "Personal name"
	circulatingLoanTypeName     = "Can circulate"
	instanceSourceReceiving     = "acquisitions"
)

// InventoryResolverDeps bundles the collaborators required to construct an inventory resolver.
type InventoryResolverDeps struct {
	Catalog     repositories.CatalogRepository
	Clock       func() time.Time
	IDGenerator func() string
	Logger      func(ctx context.Context, event string, fields map[string]any)
}

type inventoryResolver struct {
	catalog repositories.CatalogRepository
	clock   func() time.Time
	newID   func() string
	logger  func(context.Context, string, map[string]any)
}

// NewInventoryResolver wires dependencies into a concrete InventoryResolver implementation.
func NewInventoryResolver(deps InventoryResolverDeps) (InventoryResolver, error) {
	if deps.Catalog == nil {
		return nil, errors.New("inventory resolver: catalog repository is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string {
			return ulid.Make().String()
		}
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &inventoryResolver{
		catalog: deps.Catalog,
		clock: func() time.Time {
			return clock().UTC()
		},
		newID:  idGen,
		logger: logger,
	}, nil
}

func (r *inventoryResolver) GetOrCreateInstance(ctx context.Context, line domain.OrderLine) (string, error) {
	if instanceID := strings.TrimSpace(line.InstanceID); instanceID != "" {
		return instanceID, nil
	}

	productIDs := nonEmptyProductIDs(line.Details.ProductIDs)
	if len(productIDs) > 0 {
		instance, err := r.catalog.FindInstanceByProductIDs(ctx, productIDs)
		if err == nil {
			return instance.ID, nil
		}
		if !isNotFound(err) {
			return "", err
		}
	}

	instance, err := r.buildInstance(ctx, line, productIDs)
	if err != nil {
		return "", err
	}
	if err := r.catalog.CreateInstance(ctx, instance); err != nil {
		return "", err
	}

	r.logger(ctx, "receiving.instance_created", map[string]any{
		"instance_id":   instance.ID,
		"order_line_id": line.ID,
	})
	return instance.ID, nil
}

func (r *inventoryResolver) GetOrCreateHolding(ctx context.Context, instanceID string, locationID string) (string, error) {
	instanceID = strings.TrimSpace(instanceID)
	locationID = strings.TrimSpace(locationID)
	if instanceID == "" || locationID == "" {
		return "", errors.New("inventory resolver: instance id and location id are required")
	}

	holding, err := r.catalog.FindHolding(ctx, repositories.HoldingQuery{
		InstanceID: instanceID,
		LocationID: locationID,
	})
	if err == nil {
		return holding.ID, nil
	}
	if !isNotFound(err) {
		return "", err
	}

	created := domain.Holding{
		ID:         r.newID(),
		InstanceID: instanceID,
		LocationID: locationID,
	}
	if err := r.catalog.CreateHolding(ctx, created); err != nil {
		return "", err
	}

	r.logger(ctx, "receiving.holding_created", map[string]any{
		"holding_id":  created.ID,
		"instance_id": instanceID,
		"location_id": locationID,
	})
	return created.ID, nil
}

func (r *inventoryResolver) GetOrCreateItem(ctx context.Context, line domain.OrderLine, format domain.PieceFormat, holdingID string, status string, barcode string) (string, error) {
	holdingID = strings.TrimSpace(holdingID)
	if holdingID == "" {
		return "", errors.New("inventory resolver: holding id is required")
	}

	materialTypeID := strings.TrimSpace(line.Details.MaterialTypes[format])
	if materialTypeID == "" {
		return "", fmt.Errorf("%w: order line %s has no %s material type", ErrMissingMaterialType, line.ID, format)
	}

	items, err := r.catalog.FindItems(ctx, repositories.ItemQuery{
		OrderLineID: line.ID,
		HoldingID:   holdingID,
	})
	if err != nil {
		return "", err
	}
	for _, item := range items {
		if item.MaterialTypeID != materialTypeID {
			continue
		}
		// An item already claimed belongs to another piece of this batch.
		if !claimItem(ctx, item.ID) {
			continue
		}
		return item.ID, nil
	}

	loanTypeID, err := cacheAndGet(ctx, "loan-types/"+circulatingLoanTypeName, func() (string, error) {
		return r.lookupReference(ctx, repositories.ReferenceLoanType, circulatingLoanTypeName)
	})
	if err != nil {
		return "", err
	}

	if strings.TrimSpace(status) == "" {
		status = domain.ItemStatusOnOrder
	}

	item := domain.Item{
		ID:             r.newID(),
		HoldingID:      holdingID,
		OrderLineID:    line.ID,
		MaterialTypeID: materialTypeID,
		LoanTypeID:     loanTypeID,
		Barcode:        strings.TrimSpace(barcode),
		Status:         strings.TrimSpace(status),
	}
	claimItem(ctx, item.ID)
	if err := r.catalog.CreateItem(ctx, item); err != nil {
		return "", err
	}

	r.logger(ctx, "receiving.item_created", map[string]any{
		"item_id":       item.ID,
		"holding_id":    holdingID,
		"order_line_id": line.ID,
	})
	return item.ID, nil
}

// buildInstance assembles a minimal catalog instance from order line details.
// Every product identifier type must resolve or the instance is rejected.
func (r *inventoryResolver) buildInstance(ctx context.Context, line domain.OrderLine, productIDs []domain.ProductIdentifier) (domain.Instance, error) {
	title := strings.TrimSpace(line.Details.Title)
	if title == "" {
		title = line.ID
	}

	instanceTypeID, err := cacheAndGet(ctx, "instance-types/"+unspecifiedInstanceTypeName, func() (string, error) {
		return r.lookupReference(ctx, repositories.ReferenceInstanceType, unspecifiedInstanceTypeName)
	})
	if err != nil {
		return domain.Instance{}, err
	}

	statusID, err := cacheAndGet(ctx, "instance-statuses/"+temporaryInstanceStatusName, func() (string, error) {
		return r.lookupReference(ctx, repositories.ReferenceInstanceStatus, temporaryInstanceStatusName)
	})
	if err != nil {
		return domain.Instance{}, err
	}

	var contributors []domain.InstanceContributor
	if len(line.Details.Contributors) > 0 {
		nameTypeID, err := cacheAndGet(ctx, "contributor-name-types/"+personalContributorNameType, func() (string, error) {
			return r.lookupReference(ctx, repositories.ReferenceContributorNameType, personalContributorNameType)
		})
		if err != nil {
			return domain.Instance{}, err
		}
		for _, contributor := range line.Details.Contributors {
			name := strings.TrimSpace(contributor.Name)
			if name == "" {
				continue
			}
			contributors = append(contributors, domain.InstanceContributor{
				Name:                  name,
				ContributorNameTypeID: nameTypeID,
			})
		}
	}

	identifiers, err := r.resolveIdentifiers(ctx, productIDs)
	if err != nil {
		return domain.Instance{}, err
	}

	var editions []string
	if edition := strings.TrimSpace(line.Details.Edition); edition != "" {
		editions = []string{edition}
	}

	return domain.Instance{
		ID:              r.newID(),
		Title:           title,
		Editions:        editions,
		Publisher:       strings.TrimSpace(line.Details.Publisher),
		PublicationDate: strings.TrimSpace(line.Details.PublicationDate),
		InstanceTypeID:  instanceTypeID,
		StatusID:        statusID,
		Contributors:    contributors,
		Identifiers:     identifiers,
		Source:          instanceSourceReceiving,
	}, nil
}

// resolveIdentifiers maps product identifier type names to catalog IDs. A type
// name that cannot be resolved fails the whole set.
func (r *inventoryResolver) resolveIdentifiers(ctx context.Context, productIDs []domain.ProductIdentifier) ([]domain.InstanceIdentifier, error) {
	if len(productIDs) == 0 {
		return nil, nil
	}

	identifiers := make([]domain.InstanceIdentifier, 0, len(productIDs))
	for _, pid := range productIDs {
		typeName := strings.TrimSpace(pid.TypeName)
		typeID, err := cacheAndGet(ctx, "identifier-types/"+typeName, func() (string, error) {
			return r.lookupReference(ctx, repositories.ReferenceIdentifierType, typeName)
		})
		if err != nil {
			if errors.Is(err, ErrMissingLookupEntry) {
				return nil, fmt.Errorf("%w: %s", ErrInvalidProductType, typeName)
			}
			return nil, err
		}
		identifiers = append(identifiers, domain.InstanceIdentifier{
			IdentifierTypeID: typeID,
			TypeName:         typeName,
			Value:            strings.TrimSpace(pid.Value),
		})
	}
	return identifiers, nil
}

func (r *inventoryResolver) lookupReference(ctx context.Context, kind repositories.ReferenceKind, name string) (string, error) {
	id, err := r.catalog.LookupReferenceID(ctx, kind, name)
	if err != nil {
		if isNotFound(err) {
			return "", fmt.Errorf("%w: %s %q", ErrMissingLookupEntry, kind, name)
		}
		return "", err
	}
	return id, nil
}

func nonEmptyProductIDs(productIDs []domain.ProductIdentifier) []domain.ProductIdentifier {
	out := make([]domain.ProductIdentifier, 0, len(productIDs))
	for _, pid := range productIDs {
		if strings.TrimSpace(pid.Value) == "" || strings.TrimSpace(pid.TypeName) == "" {
			continue
		}
		out = append(out, pid)
	}
	return out
}

func isNotFound(err error) bool {
	var repoErr repositories.RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsNotFound()
}
