package rendezvous

import "testing"

func TestParseLineMyIP(t *testing.T) {
	ev, err := ParseLine("MY_IP 203.0.113.5")
	if err != nil {
		t.Fatal(err)
	}
	if ev.Kind != EventMyIP || ev.IP != "203.0.113.5" {
		t.Errorf("ParseLine = %+v", ev)
	}
}

func TestParseLinePeer(t *testing.T) {
	ev, err := ParseLine("PEER aabb 10.0.0.1 4001")
	if err != nil {
		t.Fatal(err)
	}
	if ev.Kind != EventPeer || ev.PKHex != "aabb" || ev.IP != "10.0.0.1" || ev.Port != 4001 {
		t.Errorf("ParseLine = %+v", ev)
	}
}

func TestParseLineNewPeer(t *testing.T) {
	ev, err := ParseLine("NEW_PEER ccdd 10.0.0.2 4002")
	if err != nil {
		t.Fatal(err)
	}
	if ev.Kind != EventNewPeer {
		t.Errorf("Kind = %v, want EventNewPeer", ev.Kind)
	}
}

func TestParseLineDelPeer(t *testing.T) {
	ev, err := ParseLine("DEL_PEER aabb")
	if err != nil {
		t.Fatal(err)
	}
	if ev.Kind != EventDelPeer || ev.PKHex != "aabb" {
		t.Errorf("ParseLine = %+v", ev)
	}
}

func TestParseLineMalformed(t *testing.T) {
	cases := []string{
		"",
		"PEER aabb 10.0.0.1",
		"PEER aabb 10.0.0.1 notaport",
		"MY_IP",
		"DEL_PEER",
		"HELLO there",
	}
	for _, c := range cases {
		if _, err := ParseLine(c); err != ErrMalformedLine {
			t.Errorf("ParseLine(%q) err = %v, want ErrMalformedLine", c, err)
		}
	}
}

func TestRegistrationLine(t *testing.T) {
	got := RegistrationLine("aabb", 4001)
	want := "aabb 4001\n"
	if got != want {
		t.Errorf("RegistrationLine = %q, want %q", got, want)
	}
}
