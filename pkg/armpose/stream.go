package armpose

import (
	"encoding/binary"
	"fmt"
	"math"
	"net"
	"sync"
)

// JointSender broadcasts per-frame arm joint positions over UDP using
// OSC-style message framing, addressed by joint
// (/armpose/<side>/<hand|elbow|shoulder>) rather than by avatar bone name.
type JointSender struct {
	mu      sync.Mutex
	conn    *net.UDPConn
	enabled bool
}

// NewJointSender dials a UDP socket to address:port and starts sending.
func NewJointSender(address string, port int) (*JointSender, error) {
	addr, err := net.ResolveUDPAddr("udp", fmt.Sprintf("%s:%d", address, port))
	if err != nil {
		return nil, fmt.Errorf("resolving stream address: %w", err)
	}

	conn, err := net.DialUDP("udp", nil, addr)
	if err != nil {
		return nil, fmt.Errorf("connecting to stream endpoint: %w", err)
	}

	return &JointSender{conn: conn, enabled: true}, nil
}

// Send transmits one OSC message per tracked joint, plus a bend-angle
// message per tracked arm.
func (j *JointSender) Send(result *FrameResult) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if !j.enabled || j.conn == nil {
		return nil
	}

	if err := j.sendArm("left", result.LeftArm); err != nil {
		return err
	}
	if err := j.sendArm("right", result.RightArm); err != nil {
		return err
	}
	return nil
}

func (j *JointSender) sendArm(side string, arm ArmSnapshot) error {
	if !arm.Tracked {
		return nil
	}

	joints := []struct {
		name string
		pos  Vec3
	}{
		{"hand", arm.HandLoc},
		{"elbow", arm.ElbowLoc},
		{"shoulder", arm.ShoulderLoc},
	}

	for _, jt := range joints {
		msg := buildOSCMessage(fmt.Sprintf("/armpose/%s/%s", side, jt.name),
			float32(jt.pos.X), float32(jt.pos.Y), float32(jt.pos.Z))
		if _, err := j.conn.Write(msg); err != nil {
			return fmt.Errorf("sending %s %s: %w", side, jt.name, err)
		}
	}

	angleMsg := buildOSCMessage(fmt.Sprintf("/armpose/%s/bend_angle", side), float32(arm.BendAngleDegrees))
	if _, err := j.conn.Write(angleMsg); err != nil {
		return fmt.Errorf("sending %s bend angle: %w", side, err)
	}

	return nil
}

// Close releases sender resources.
func (j *JointSender) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.enabled = false
	if j.conn != nil {
		return j.conn.Close()
	}
	return nil
}

// buildOSCMessage creates an OSC message with the given address and
// arguments (int32, float32, or string).
func buildOSCMessage(address string, args ...interface{}) []byte {
	buf := make([]byte, 0, 256)
	buf = appendOSCString(buf, address)

	typeTag := ","
	for _, arg := range args {
		switch arg.(type) {
		case int32:
			typeTag += "i"
		case float32:
			typeTag += "f"
		case string:
			typeTag += "s"
		}
	}
	buf = appendOSCString(buf, typeTag)

	for _, arg := range args {
		switch v := arg.(type) {
		case int32:
			buf = appendInt32(buf, v)
		case float32:
			buf = appendFloat32(buf, v)
		case string:
			buf = appendOSCString(buf, v)
		}
	}

	return buf
}

// appendOSCString appends a null-terminated, 4-byte aligned string.
func appendOSCString(buf []byte, s string) []byte {
	buf = append(buf, []byte(s)...)
	buf = append(buf, 0)

	padding := (4 - (len(s)+1)%4) % 4
	for i := 0; i < padding; i++ {
		buf = append(buf, 0)
	}

	return buf
}

// appendInt32 appends a big-endian 32-bit integer.
func appendInt32(buf []byte, v int32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, uint32(v))
	return append(buf, b...)
}

// appendFloat32 appends a big-endian 32-bit float.
func appendFloat32(buf []byte, v float32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, math.Float32bits(v))
	return append(buf, b...)
}
