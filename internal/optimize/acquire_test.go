package optimize

import (
	"math"
	"testing"
)

func TestAcquisitionByName(t *testing.T) {
	t.Run("ei", func(t *testing.T) {
		acq, err := AcquisitionByName("ei", 0, 0)
		if err != nil {
			t.Fatalf("ei: %v", err)
		}
		if got := acq(3, 5, 1); got != 2 {
			t.Errorf("ei(mu=3, best=5) = %v, want 2", got)
		}
		if got := acq(7, 5, 1); got != 0 {
			t.Errorf("ei хуже best должен давать 0, получили %v", got)
		}
	})

	t.Run("ucb rewards spread", func(t *testing.T) {
		acq, err := AcquisitionByName("ucb", 0, 2)
		if err != nil {
			t.Fatalf("ucb: %v", err)
		}
		near := acq(5, 5, 0.1)
		far := acq(5, 5, 1.0)
		if far <= near {
			t.Errorf("ucb должен поощрять неисследованные точки: near=%v far=%v", near, far)
		}
	})

	t.Run("poi", func(t *testing.T) {
		acq, err := AcquisitionByName("poi", 0.01, 0)
		if err != nil {
			t.Fatalf("poi: %v", err)
		}
		good := acq(1, 5, 0.5)
		bad := acq(9, 5, 0.5)
		if good < 0.99 || bad > 0.01 {
			t.Errorf("poi: перспективная=%v, бесперспективная=%v", good, bad)
		}
		// при прогнозе хуже best рост неопределённости повышает шанс
		if acq(6, 5, 0.1) >= acq(6, 5, 10) {
			t.Error("poi должен расти с неопределённостью при mu > best")
		}
	})

	t.Run("unknown", func(t *testing.T) {
		if _, err := AcquisitionByName("thompson", 0, 0); err == nil {
			t.Error("ожидали ошибку на неизвестное имя")
		}
	})
}

func TestNormCDF(t *testing.T) {
	if got := normCDF(0); math.Abs(got-0.5) > 1e-12 {
		t.Errorf("normCDF(0) = %v", got)
	}
	if normCDF(3) < 0.99 || normCDF(-3) > 0.01 {
		t.Errorf("хвосты: %v, %v", normCDF(3), normCDF(-3))
	}
}
