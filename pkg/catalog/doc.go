// Package catalog holds the authoritative list of commercial plans offered to
// freight-forwarding tenants.
//
// Plans are immutable once published. Changing the terms of a plan means
// publishing a new plan with a new ID and deactivating the old one, so that
// subscribers already priced against the old terms keep resolving them.
//
// Catalogs are loaded from a Source. Two sources ship with the package: an
// in-memory source for tests and embedded defaults, and a YAML source for
// operator-maintained plan files.
//
//	cat, err := catalog.NewCatalog(ctx, catalog.NewInMemSource(starter, pro))
//	if err != nil {
//		return err
//	}
//	for _, p := range cat.ActivePlans() {
//		price, _ := p.Price(catalog.CycleMonthly)
//		fmt.Println(p.Name, price.Amount)
//	}
//
// Prices are integer amounts in the smallest currency unit. Limits use
// Unlimited (-1) for "no cap".
package catalog
