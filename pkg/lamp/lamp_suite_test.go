package lamp_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestLamp(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Lamp Suite")
}
