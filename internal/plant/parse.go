package plant

import (
	"encoding/xml"

	"github.com/pkg/errors"
)

// URDF joint types the parser accepts.
const (
	JointRevolute   = "revolute"
	JointContinuous = "continuous"
	JointPrismatic  = "prismatic"
	JointFixed      = "fixed"
)

type robotXML struct {
	XMLName xml.Name   `xml:"robot"`
	Name    string     `xml:"name,attr"`
	Links   []linkXML  `xml:"link"`
	Joints  []jointXML `xml:"joint"`
}

type linkXML struct {
	Name string `xml:"name,attr"`
}

type jointXML struct {
	Name   string   `xml:"name,attr"`
	Type   string   `xml:"type,attr"`
	Parent frameXML `xml:"parent"`
	Child  frameXML `xml:"child"`
}

type frameXML struct {
	Link string `xml:"link,attr"`
}

func parseRobot(src string) (*robotXML, error) {
	var robot robotXML
	if err := xml.Unmarshal([]byte(src), &robot); err != nil {
		return nil, errors.Wrap(err, "failed to parse robot description")
	}
	if len(robot.Links) == 0 {
		return nil, errors.Errorf("robot %q declares no links", robot.Name)
	}
	return &robot, nil
}

// jointDOF maps a joint type to the velocity degrees of freedom it adds.
func jointDOF(jointType string) (int, error) {
	switch jointType {
	case JointRevolute, JointContinuous, JointPrismatic:
		return 1, nil
	case JointFixed:
		return 0, nil
	default:
		return 0, errors.Errorf("unsupported joint type %q", jointType)
	}
}
