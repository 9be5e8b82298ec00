package catalog_test

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"testing"

	"github.com/cucumber/godog"
	"github.com/your-org/storefront/internal/domain/catalog"
	"gorm.io/datatypes"
)

type resolutionTestContext struct {
	groups    []catalog.GroupProduct
	selection catalog.Bind
	result    *catalog.Availability
}

func (c *resolutionTestContext) reset() {
	c.groups = nil
	c.selection = catalog.Bind{}
	c.result = nil
}

func (c *resolutionTestContext) aProductWithVariants(table *godog.Table) error {
	header := table.Rows[0].Cells
	for _, row := range table.Rows[1:] {
		g := catalog.GroupProduct{ProductID: 1}
		bind := catalog.Bind{}
		for i, cell := range row.Cells {
			switch name := header[i].Value; name {
			case "id":
				id, err := strconv.Atoi(cell.Value)
				if err != nil {
					return err
				}
				g.ID = uint(id)
			case "stock":
				if cell.Value == "" {
					continue
				}
				n, err := strconv.Atoi(cell.Value)
				if err != nil {
					return err
				}
				g.Stock = &n
			default:
				bind[name] = cell.Value
			}
		}
		g.Bind = datatypes.NewJSONType(bind)
		c.groups = append(c.groups, g)
	}
	return nil
}

func (c *resolutionTestContext) theShopperSelected(feature, value string) error {
	c.selection[feature] = value
	return nil
}

func (c *resolutionTestContext) iCheck(feature, value string) error {
	av := catalog.Resolve(catalog.NewIndex(c.groups), c.selection, feature, catalog.FeatureValue{Text: value})
	c.result = &av
	return nil
}

func (c *resolutionTestContext) theCandidateHasStock(n int) error {
	if c.result == nil {
		return errors.New("no candidate resolved")
	}
	if c.result.Stock != n {
		return fmt.Errorf("expected stock %d, got %d", n, c.result.Stock)
	}
	return nil
}

func (c *resolutionTestContext) theCandidateIsEnabled() error {
	if c.result == nil || c.result.Disabled {
		return fmt.Errorf("expected enabled candidate, got %+v", c.result)
	}
	return nil
}

func (c *resolutionTestContext) theCandidateIsDisabled() error {
	if c.result == nil || !c.result.Disabled {
		return fmt.Errorf("expected disabled candidate, got %+v", c.result)
	}
	return nil
}

func (c *resolutionTestContext) theMainVariantIs(id int) error {
	if c.result == nil || c.result.Main == nil {
		return errors.New("expected a main variant")
	}
	if c.result.Main.ID != uint(id) {
		return fmt.Errorf("expected main variant %d, got %d", id, c.result.Main.ID)
	}
	return nil
}

func (c *resolutionTestContext) thereIsNoMainVariant() error {
	if c.result != nil && c.result.Main != nil {
		return fmt.Errorf("expected no main variant, got %d", c.result.Main.ID)
	}
	return nil
}

func InitializeScenario(ctx *godog.ScenarioContext) {
	tc := &resolutionTestContext{}

	ctx.Before(func(ctx context.Context, sc *godog.Scenario) (context.Context, error) {
		tc.reset()
		return ctx, nil
	})

	ctx.Step(`^a product with variants:$`, tc.aProductWithVariants)
	ctx.Step(`^the shopper selected (\w+) "([^"]*)"$`, tc.theShopperSelected)
	ctx.Step(`^I check (\w+) "([^"]*)"$`, tc.iCheck)
	ctx.Step(`^the candidate has stock (\d+)$`, tc.theCandidateHasStock)
	ctx.Step(`^the candidate is enabled$`, tc.theCandidateIsEnabled)
	ctx.Step(`^the candidate is disabled$`, tc.theCandidateIsDisabled)
	ctx.Step(`^the main variant is (\d+)$`, tc.theMainVariantIs)
	ctx.Step(`^there is no main variant$`, tc.thereIsNoMainVariant)
}

func TestFeatures(t *testing.T) {
	suite := godog.TestSuite{
		ScenarioInitializer: InitializeScenario,
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"features"},
			TestingT: t,
		},
	}

	if suite.Run() != 0 {
		t.Fatal("non-zero status returned, failed to run feature tests")
	}
}
