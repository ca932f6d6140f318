// Package loader provides request batching (coalescing) and deduplication
// for bulk-fetchable data.
//
// Many concurrent Load calls issued inside one batching window are collected
// into a single invocation of the caller-supplied batch function, executed
// once, and the positional results are distributed back to each caller.
// Repeated loads of the same key share one in-flight computation through the
// result cache.
//
// Example:
//
//	fetchUsers := func(ctx context.Context, ids []string) ([]loader.Result[*User], error) {
//		users, err := db.UsersByIDs(ctx, ids)
//		if err != nil {
//			return nil, err
//		}
//		results := make([]loader.Result[*User], len(ids))
//		for i, id := range ids {
//			results[i] = loader.Result[*User]{Value: users[id]}
//		}
//		return results, nil
//	}
//
//	users := loader.New(fetchUsers, loader.WithMaxBatch[string, *User](100))
//	u, err := users.Load(ctx, "42")
package loader
