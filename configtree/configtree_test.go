package configtree

import "testing"

const doc = `
macs:
  - name: mac0
    driver: dlogg-tty
    device: /dev/ttyUSB0
apps:
  - name: app0
    driver: UVR61-3_v1.4
    channels:
      - channel-number: 1
        channel-prefix: S
line-id: 0
controller: 1
`

func TestLoadAndLookup(t *testing.T) {
	root, err := Load([]byte(doc))
	if err != nil {
		t.Fatal(err)
	}
	if v, ok := root.Int("line-id"); !ok || v != 0 {
		t.Fatalf("line-id = %v, %v", v, ok)
	}
	if v, ok := root.Int("controller"); !ok || v != 1 {
		t.Fatalf("controller = %v, %v", v, ok)
	}
	macs, ok := root.Sub("macs")
	if !ok {
		t.Fatal("macs missing")
	}
	children := macs.Children()
	if len(children) != 1 {
		t.Fatalf("len(macs) = %d", len(children))
	}
	if name, ok := children[0].String("name"); !ok || name != "mac0" {
		t.Fatalf("macs[0].name = %v, %v", name, ok)
	}
}

func TestMissingDirective(t *testing.T) {
	root, err := Load([]byte(doc))
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := root.Int("does-not-exist"); ok {
		t.Fatal("Int() ok for missing directive")
	}
	if _, ok := root.Sub("does-not-exist"); ok {
		t.Fatal("Sub() ok for missing directive")
	}
}

func TestZeroNode(t *testing.T) {
	var n Node
	if !n.IsZero() {
		t.Fatal("zero Node reports non-zero")
	}
	if _, ok := n.Int("x"); ok {
		t.Fatal("Int() ok on zero Node")
	}
}
