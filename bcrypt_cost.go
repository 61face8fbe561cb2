//go:build !race

package accounts

func passwordHashCost() int {
	// Cost is fixed for every stored secret. Changing it only affects
	// hashes created after the change; existing hashes keep their cost.
	return 14
}
