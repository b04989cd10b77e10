package good

import "example.com/consumer/raw"

func Init() bool {
	return raw.VaInitialize() == raw.VA_STATUS_SUCCESS && raw.FeatureKey != ""
}
