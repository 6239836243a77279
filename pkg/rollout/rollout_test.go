package rollout

import "testing"

func TestIsTerminalFailure(t *testing.T) {
	terminal := []string{
		"ImagePullBackOff", "ErrImagePull", "InvalidImageName",
		"ErrImageNeverPull", "CreateContainerConfigError", "CrashLoopBackOff",
	}
	for _, reason := range terminal {
		if !IsTerminalFailure(reason) {
			t.Errorf("expected %q to be terminal", reason)
		}
	}

	transient := []string{"ContainerCreating", "PodInitializing", "", "Pending"}
	for _, reason := range transient {
		if IsTerminalFailure(reason) {
			t.Errorf("expected %q to not be terminal", reason)
		}
	}
}

func TestRolloutSucceededRequiresBothConditions(t *testing.T) {
	cases := []struct {
		image string
		ready bool
		want  bool
	}{
		{"r.io/app:amd64-abc1234", true, true},
		{"r.io/app:amd64-abc1234", false, false},
		{"r.io/app:amd64-old0000", true, false},
		{"r.io/app:amd64-old0000", false, false},
	}
	for _, tc := range cases {
		got := RolloutSucceeded(tc.image, tc.ready, "abc1234")
		if got != tc.want {
			t.Errorf("RolloutSucceeded(%q, %v) = %v, want %v", tc.image, tc.ready, got, tc.want)
		}
	}
}
