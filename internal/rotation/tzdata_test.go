package rotation

import _ "time/tzdata"
