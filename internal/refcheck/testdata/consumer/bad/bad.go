package bad

import va "example.com/consumer/raw"

func Terminate() va.VAStatus {
	return va.VaTerminate()
}
