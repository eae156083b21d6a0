package edi

import "testing"

func TestEdiRoundTrip(t *testing.T) {
	cases := []struct {
		name string
		edi  Edi
		kind Kind
	}{
		{"pid", FromPid(Pid(7)), KindPid},
		{"fd", FromFd(Fd(0x41)), KindFd},
		{"chd", FromChd(Chd(3)), KindChd},
		{"evd", FromEvd(Evd(9)), KindEvd},
	}

	for _, c := range cases {
		if got := c.edi.Kind(); got != c.kind {
			t.Errorf("%s: kind = %v, want %v", c.name, got, c.kind)
		}
	}

	fd := FromFd(Fd(0x41))
	if got := fd.String(); got != "effect file@65" {
		t.Errorf("display = %q, want %q", got, "effect file@65")
	}

	if _, ok := fd.AsPid(); ok {
		t.Errorf("fd.AsPid() should fail, a file edi is not a pid")
	}
	if got, ok := fd.AsFd(); !ok || got != Fd(0x41) {
		t.Errorf("fd.AsFd() = (%v, %v), want (0x41, true)", got, ok)
	}
}

func TestEdiPayloadPreserved(t *testing.T) {
	for _, payload := range []uint64{0, 1, 0x3FFFFFFFFFFFFFFF, 1234567} {
		e := FromPid(Pid(payload))
		p, ok := e.AsPid()
		if !ok || uint64(p) != payload {
			t.Errorf("payload %d round-tripped to (%v, %v)", payload, p, ok)
		}
	}
}

type dummyDevice struct{ name string }

func TestEdAccessKernelAlwaysAllowed(t *testing.T) {
	ed := New[dummyDevice](dummyDevice{"dev"})

	if _, ok := ed.Access(Kernel); !ok {
		t.Errorf("kernel should always be permitted")
	}
}

func TestEdPermissionDelegation(t *testing.T) {
	ed := New[dummyDevice](dummyDevice{"dev"})

	if _, ok := ed.Access(Pid(7)); ok {
		t.Errorf("pid 7 should not yet have access")
	}

	if !ed.Allow(Kernel, Pid(7)) {
		t.Errorf("kernel should be able to grant access")
	}

	if _, ok := ed.Access(Pid(7)); !ok {
		t.Errorf("pid 7 should now have access")
	}
	if _, ok := ed.Access(Pid(8)); ok {
		t.Errorf("pid 8 should not have access yet")
	}

	if !ed.Allow(Pid(7), Pid(8)) {
		t.Errorf("pid 7 should be able to delegate, it is now permitted")
	}
	if _, ok := ed.Access(Pid(8)); !ok {
		t.Errorf("pid 8 should now have access via delegation")
	}

	if ed.Allow(Pid(99), Pid(100)) {
		t.Errorf("unpermitted pid 99 should not be able to grant access")
	}
}

func TestEdAccessConcurrent(t *testing.T) {
	ed := New[dummyDevice](dummyDevice{"dev"})
	ed.Allow(Kernel, Pid(1))

	done := make(chan struct{})
	for i := 0; i < 32; i++ {
		go func(i int) {
			defer func() { done <- struct{}{} }()
			ed.Access(Pid(1))
			ed.Allow(Kernel, Pid(i))
		}(i)
	}
	for i := 0; i < 32; i++ {
		<-done
	}
}
