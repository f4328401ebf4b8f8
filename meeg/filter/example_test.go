package filter_test

import (
	"fmt"
	"math/cmplx"

	"github.com/cwbudde/algo-meeg/meeg/filter"
)

func ExampleDesignLowpass() {
	taps, err := filter.DesignLowpass(40, 250)
	if err != nil {
		panic(err)
	}
	dc := cmplx.Abs(filter.Response(taps, 0, 250))
	fmt.Printf("dc gain %.2f, odd length %t\n", dc, len(taps)%2 == 1)

	// Output:
	// dc gain 1.00, odd length true
}

func ExampleApplyZeroPhase() {
	taps, err := filter.DesignLowpass(30, 100)
	if err != nil {
		panic(err)
	}

	// A constant passes through the unity-DC-gain kernel unchanged.
	signal := make([]float64, 200)
	for i := range signal {
		signal[i] = 2
	}
	out, err := filter.ApplyZeroPhase(signal, taps)
	if err != nil {
		panic(err)
	}
	fmt.Printf("%.1f %.1f %.1f\n", out[0], out[100], out[199])

	// Output:
	// 2.0 2.0 2.0
}
