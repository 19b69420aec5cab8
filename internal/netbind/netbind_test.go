// Copyright 2026 The Drover Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package netbind

import (
	"net"
	"testing"

	drovererrors "github.com/drover-sh/drover/pkg/errors"
)

func TestBind(t *testing.T) {
	ln, err := Bind("127.0.0.1:0")
	if err != nil {
		t.Fatalf("Bind returned error: %v", err)
	}
	defer ln.Close()

	if ln.Port() == 0 {
		t.Error("expected a kernel-assigned port, got 0")
	}
	if ln.File() == nil {
		t.Error("expected an exported descriptor")
	}

	// The socket must actually accept connections.
	conn, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("dial bound socket: %v", err)
	}
	conn.Close()
}

func TestBind_AddressInUse(t *testing.T) {
	first, err := Bind("127.0.0.1:0")
	if err != nil {
		t.Fatalf("Bind returned error: %v", err)
	}
	defer first.Close()

	_, err = Bind(first.Addr().String())
	if err == nil {
		t.Fatal("expected error binding an in-use address")
	}

	var bindErr *drovererrors.BindError
	if !drovererrors.As(err, &bindErr) {
		t.Fatalf("expected BindError, got %T: %v", err, err)
	}
	if bindErr.Addr != first.Addr().String() {
		t.Errorf("expected error to carry %q, got %q", first.Addr().String(), bindErr.Addr)
	}
}

func TestBind_InvalidAddress(t *testing.T) {
	_, err := Bind("definitely not an address")
	if err == nil {
		t.Fatal("expected error for invalid address")
	}
	var bindErr *drovererrors.BindError
	if !drovererrors.As(err, &bindErr) {
		t.Fatalf("expected BindError, got %T: %v", err, err)
	}
}

func TestClose_Idempotent(t *testing.T) {
	ln, err := Bind("127.0.0.1:0")
	if err != nil {
		t.Fatalf("Bind returned error: %v", err)
	}

	if err := ln.Close(); err != nil {
		t.Fatalf("first Close returned error: %v", err)
	}
	if err := ln.Close(); err != nil {
		t.Errorf("second Close returned error: %v", err)
	}

	if _, err := net.Dial("tcp", ln.Addr().String()); err == nil {
		t.Error("socket still accepting after Close")
	}
}

func TestFile_SharesSocket(t *testing.T) {
	ln, err := Bind("127.0.0.1:0")
	if err != nil {
		t.Fatalf("Bind returned error: %v", err)
	}
	defer ln.Close()

	// Rebuilding a listener from the exported descriptor must yield the
	// same bound address: the dup points at the same socket.
	adopted, err := net.FileListener(ln.File())
	if err != nil {
		t.Fatalf("FileListener returned error: %v", err)
	}
	defer adopted.Close()

	if adopted.Addr().String() != ln.Addr().String() {
		t.Errorf("adopted listener address %s, want %s", adopted.Addr(), ln.Addr())
	}
}
