// Package raw stands in for generated bindings.
package raw

type VAStatus int32

const VA_STATUS_SUCCESS = 0

const FeatureKey = "protected_content=off"

func VaInitialize() VAStatus { return VA_STATUS_SUCCESS }
