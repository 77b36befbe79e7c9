package localcache

import (
	"math"

	"github.com/pkg/errors"

	"github.com/frizwan636-dotcom/attendancepro/core"
)

// Version of the snapshot layout written by this package.
const Version = 11

var errUnsupportedVersion = errors.New("unsupported snapshot version")

// steps[i] upgrades a version i+1 document to version i+2.
// Steps only add missing fields; existing values are never overwritten.
var steps = [Version - 1]func(doc map[string]interface{}){
	// v2: fee ledger per student
	func(doc map[string]interface{}) {
		eachObject(doc, "students", func(st map[string]interface{}) {
			setArray(st, "fee_history")
		})
	},
	// v3: teacher mobile numbers
	func(doc map[string]interface{}) {
		eachObject(doc, "teachers", func(t map[string]interface{}) {
			setDefault(t, "mobile_number", "")
		})
	},
	// v4: coordinator daily submissions
	func(doc map[string]interface{}) {
		setArray(doc, "dailySubmissions")
	},
	// v5: roles
	func(doc map[string]interface{}) {
		eachObject(doc, "teachers", func(t map[string]interface{}) {
			setDefault(t, "role", "teacher")
		})
	},
	// v6: profile PINs
	func(doc map[string]interface{}) {
		eachObject(doc, "teachers", func(t map[string]interface{}) {
			if pin, _ := t["pin"].(string); pin == "" {
				t["pin"] = core.DefaultTeacherPIN
			}
		})
	},
	// v7: PIN recovery question
	func(doc map[string]interface{}) {
		eachObject(doc, "teachers", func(t map[string]interface{}) {
			setDefault(t, "security_question", "")
			setDefault(t, "security_answer", "")
		})
	},
	// v8: staff roll call
	func(doc map[string]interface{}) {
		setArray(doc, "teacherAttendance")
	},
	// v9: remembered profile
	func(doc map[string]interface{}) {
		if _, ok := doc["loggedInUserId"]; !ok {
			doc["loggedInUserId"] = nil
		}
	},
	// v10: onboarding flag and father names
	func(doc map[string]interface{}) {
		eachObject(doc, "teachers", func(t map[string]interface{}) {
			setDefault(t, "setup_complete", true)
		})
		eachObject(doc, "students", func(st map[string]interface{}) {
			setDefault(st, "father_name", "")
		})
	},
	// v11: multi-school; the school is recovered from the entities when possible
	func(doc map[string]interface{}) {
		setDefault(doc, "schoolPin", "")
		if _, ok := doc["school"].(map[string]interface{}); ok {
			return
		}
		var schoolID string
		for _, key := range []string{"teachers", "students"} {
			eachObject(doc, key, func(obj map[string]interface{}) {
				if id, _ := obj["school_id"].(string); schoolID == "" && id != "" {
					schoolID = id
				}
			})
		}
		doc["school"] = map[string]interface{}{"id": schoolID, "name": "", "pin": doc["schoolPin"]}
	},
}

// Migrate upgrades doc in place to the current Version.
// Documents without a version are treated as version 1.
func Migrate(doc map[string]interface{}) error {
	from, err := versionOf(doc)
	if err != nil {
		return err
	}
	for v := from; v < Version; v++ {
		steps[v-1](doc)
		doc["version"] = v + 1
	}
	doc["version"] = Version
	return nil
}

func versionOf(doc map[string]interface{}) (int, error) {
	raw, ok := doc["version"]
	if !ok || raw == nil {
		return 1, nil
	}
	f, ok := raw.(float64)
	if !ok {
		if i, isInt := raw.(int); isInt {
			f = float64(i)
		} else {
			return 0, errors.Wrapf(errUnsupportedVersion, "version %v", raw)
		}
	}
	if f != math.Trunc(f) || f < 1 || f > Version {
		return 0, errors.Wrapf(errUnsupportedVersion, "version %v", raw)
	}
	return int(f), nil
}

func eachObject(doc map[string]interface{}, key string, fn func(obj map[string]interface{})) {
	items, _ := doc[key].([]interface{})
	for _, item := range items {
		if obj, ok := item.(map[string]interface{}); ok {
			fn(obj)
		}
	}
}

func setDefault(obj map[string]interface{}, key string, val interface{}) {
	if cur, ok := obj[key]; !ok || cur == nil {
		obj[key] = val
	}
}

func setArray(obj map[string]interface{}, key string) {
	if _, ok := obj[key].([]interface{}); !ok {
		obj[key] = []interface{}{}
	}
}
